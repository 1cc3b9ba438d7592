package gbtree

import (
	"fmt"
	"math"
)

// Node is one node of a regression tree, stored in a flat array.
// Leaves carry Feature == -1 and a Value; internal nodes carry a split
// feature, a threshold and child indices. Missing is the child taken
// when the split feature is NaN. Cover is the training sample weight
// that reached the node and is required for attribution.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Missing   int     `json:"missing"`
	Value     float64 `json:"value"`
	Cover     float64 `json:"cover"`
}

// IsLeaf reports whether the node is a terminal leaf.
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a single regression tree of the ensemble.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Walk descends the tree for one feature vector and returns the leaf value.
// Values compare with strict less-than against the threshold; NaN follows
// the recorded missing branch.
func (t *Tree) Walk(x []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value
		}
		v := x[node.Feature]
		switch {
		case math.IsNaN(v):
			idx = node.Missing
		case v < node.Threshold:
			idx = node.Left
		default:
			idx = node.Right
		}
	}
}

// expectedValue is the cover-weighted mean leaf value of the tree.
func (t *Tree) expectedValue() float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	root := t.Nodes[0].Cover
	if root <= 0 {
		return t.Nodes[0].Value
	}
	sum := 0.0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			sum += node.Value * node.Cover
		}
	}
	return sum / root
}

// maxDepth returns the depth of the tree, counting the root as depth 1.
func (t *Tree) maxDepth() int {
	return t.depthFrom(0)
}

func (t *Tree) depthFrom(idx int) int {
	node := t.Nodes[idx]
	if node.IsLeaf() {
		return 1
	}
	left := t.depthFrom(node.Left)
	right := t.depthFrom(node.Right)
	if left > right {
		return left + 1
	}
	return right + 1
}

// validate checks structural soundness: child indices in range, feature
// indices within the declared feature count, and positive covers.
func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, node := range t.Nodes {
		if node.IsLeaf() {
			continue
		}
		if node.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature index %d out of range (%d features)", i, node.Feature, numFeatures)
		}
		if node.Left <= i || node.Left >= len(t.Nodes) ||
			node.Right <= i || node.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if node.Missing != node.Left && node.Missing != node.Right {
			return fmt.Errorf("node %d: missing branch must point at a child", i)
		}
		if node.Cover <= 0 {
			return fmt.Errorf("node %d: non-positive cover %v", i, node.Cover)
		}
	}
	return nil
}
