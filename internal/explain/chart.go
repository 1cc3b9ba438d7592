package explain

import (
	"fmt"
	"math"
	"sort"
)

// ChartKind selects the visualization a tier produces. The general path
// renders a single-record waterfall; the tree-level fallback renders a
// magnitude bar chart, which callers accept as a degradation.
type ChartKind string

const (
	ChartWaterfall ChartKind = "waterfall"
	ChartBar       ChartKind = "bar"
)

// Legend accompanies every chart artifact.
const Legend = "Positive contributions increase the predicted risk; negative contributions decrease it."

// DefaultMaxDisplay bounds the number of chart rows before the
// low-magnitude tail is collapsed into a single aggregate row.
const DefaultMaxDisplay = 10

// Contribution is one feature's signed contribution to a single
// prediction, in margin space.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// ChartItem is one rendered row. Cumulative is the running total from the
// base value and is only meaningful for waterfall charts.
type ChartItem struct {
	Label        string  `json:"label"`
	Contribution float64 `json:"contribution"`
	Cumulative   float64 `json:"cumulative,omitempty"`
}

// Chart is the display artifact handed to the UI collaborator.
type Chart struct {
	Kind       ChartKind   `json:"kind"`
	BaseValue  float64     `json:"base_value"`
	FinalValue float64     `json:"final_value"`
	Items      []ChartItem `json:"items"`
	Legend     string      `json:"legend"`
}

// Attribution explains one prediction. Contributions preserve the input
// record's feature order; the chart orders rows by magnitude for display.
type Attribution struct {
	Method        string         `json:"method"`
	BaseValue     float64        `json:"base_value"`
	Margin        float64        `json:"margin"`
	Contributions []Contribution `json:"contributions"`
	Chart         *Chart         `json:"chart"`
}

func buildChart(kind ChartKind, base, margin float64, contribs []Contribution, maxDisplay int) *Chart {
	if maxDisplay <= 0 {
		maxDisplay = DefaultMaxDisplay
	}

	sorted := append([]Contribution(nil), contribs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Contribution) > math.Abs(sorted[j].Contribution)
	})

	shown := sorted
	var tail []Contribution
	if len(sorted) > maxDisplay {
		shown = sorted[:maxDisplay-1]
		tail = sorted[maxDisplay-1:]
	}

	items := make([]ChartItem, 0, len(shown)+1)
	running := base
	for _, c := range shown {
		running += c.Contribution
		items = append(items, ChartItem{
			Label:        fmt.Sprintf("%s = %v", c.Feature, c.Value),
			Contribution: c.Contribution,
			Cumulative:   running,
		})
	}
	if len(tail) > 0 {
		rest := 0.0
		for _, c := range tail {
			rest += c.Contribution
		}
		running += rest
		items = append(items, ChartItem{
			Label:        fmt.Sprintf("%d other features", len(tail)),
			Contribution: rest,
			Cumulative:   running,
		})
	}

	if kind == ChartBar {
		// Bar charts show magnitudes only; drop the running totals.
		for i := range items {
			items[i].Cumulative = 0
		}
	}

	return &Chart{
		Kind:       kind,
		BaseValue:  base,
		FinalValue: margin,
		Items:      items,
		Legend:     Legend,
	}
}
