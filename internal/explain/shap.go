package explain

import (
	"math"

	"github.com/clinflow/risk-inference-service/internal/gbtree"
)

// Exact TreeSHAP for one record: per-feature signed contributions in
// margin space satisfying local accuracy,
//
//	sum(phi) = Margin(x) - ExpectedValue().
//
// The implementation follows the path-dependent algorithm of Lundberg et
// al. (2018): a path of unique features is maintained during the descent,
// with each element tracking the fraction of one-paths (feature present)
// and zero-paths (feature absent) flowing through it, plus the permutation
// weight of the subsets represented so far.

type pathElem struct {
	feature int
	zero    float64 // fraction of zero-paths surviving this split
	one     float64 // fraction of one-paths surviving this split
	pweight float64
}

func shapValues(e *gbtree.Ensemble, x []float64) []float64 {
	phi := make([]float64, e.NumFeatures())
	trees := e.Trees()
	for i := range trees {
		treeShap(&trees[i], x, phi)
	}
	return phi
}

func treeShap(t *gbtree.Tree, x []float64, phi []float64) {
	shapRecurse(t, 0, nil, 1, 1, -1, x, phi)
}

func shapRecurse(t *gbtree.Tree, nodeIdx int, parent []pathElem, zeroFrac, oneFrac float64, featureIdx int, x []float64, phi []float64) {
	path := make([]pathElem, len(parent), len(parent)+1)
	copy(path, parent)
	path = extendPath(path, zeroFrac, oneFrac, featureIdx)

	node := t.Nodes[nodeIdx]
	if node.IsLeaf() {
		for i := 1; i < len(path); i++ {
			w := unwoundSum(path, i)
			phi[path[i].feature] += w * (path[i].one - path[i].zero) * node.Value
		}
		return
	}

	hot, cold := node.Left, node.Right
	v := x[node.Feature]
	if math.IsNaN(v) {
		if node.Missing == node.Right {
			hot, cold = node.Right, node.Left
		}
	} else if v >= node.Threshold {
		hot, cold = node.Right, node.Left
	}

	hotZero := t.Nodes[hot].Cover / node.Cover
	coldZero := t.Nodes[cold].Cover / node.Cover

	incomingZero, incomingOne := 1.0, 1.0
	if k := findFeature(path, node.Feature); k >= 0 {
		// The feature already split higher up: undo its extension before
		// splitting on it again.
		incomingZero, incomingOne = path[k].zero, path[k].one
		path = unwindPath(path, k)
	}

	shapRecurse(t, hot, path, hotZero*incomingZero, incomingOne, node.Feature, x, phi)
	shapRecurse(t, cold, path, coldZero*incomingZero, 0, node.Feature, x, phi)
}

// extendPath grows the unique path by one feature and redistributes the
// permutation weights over all subset sizes.
func extendPath(path []pathElem, zeroFrac, oneFrac float64, featureIdx int) []pathElem {
	d := len(path)
	pw := 0.0
	if d == 0 {
		pw = 1.0
	}
	path = append(path, pathElem{feature: featureIdx, zero: zeroFrac, one: oneFrac, pweight: pw})
	for i := d - 1; i >= 0; i-- {
		path[i+1].pweight += oneFrac * path[i].pweight * float64(i+1) / float64(d+1)
		path[i].pweight = zeroFrac * path[i].pweight * float64(d-i) / float64(d+1)
	}
	return path
}

// unwindPath removes the element at index k, reversing its extendPath.
func unwindPath(path []pathElem, k int) []pathElem {
	d := len(path) - 1
	oneFrac, zeroFrac := path[k].one, path[k].zero
	next := path[d].pweight
	for j := d - 1; j >= 0; j-- {
		if oneFrac != 0 {
			tmp := path[j].pweight
			path[j].pweight = next * float64(d+1) / (float64(j+1) * oneFrac)
			next = tmp - path[j].pweight*zeroFrac*float64(d-j)/float64(d+1)
		} else {
			path[j].pweight = path[j].pweight * float64(d+1) / (zeroFrac * float64(d-j))
		}
	}
	for i := k; i < d; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
	return path[:d]
}

// unwoundSum is the total permutation weight the path would carry with the
// element at index k removed, without mutating the path.
func unwoundSum(path []pathElem, k int) float64 {
	d := len(path) - 1
	oneFrac, zeroFrac := path[k].one, path[k].zero
	next := path[d].pweight
	total := 0.0
	for j := d - 1; j >= 0; j-- {
		if oneFrac != 0 {
			tmp := next * float64(d+1) / (float64(j+1) * oneFrac)
			total += tmp
			next = path[j].pweight - tmp*zeroFrac*float64(d-j)/float64(d+1)
		} else {
			total += path[j].pweight / zeroFrac * float64(d+1) / float64(d-j)
		}
	}
	return total
}

func findFeature(path []pathElem, feature int) int {
	// Index 0 is the synthetic root element (feature -1).
	for i := 1; i < len(path); i++ {
		if path[i].feature == feature {
			return i
		}
	}
	return -1
}
