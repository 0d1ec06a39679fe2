package assembler

import (
	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
)

const (
	StaticCategorical  = "static_categorical"
	StaticReal         = "static_real"
	DynamicCategorical = "dynamic_categorical"
	DynamicReal        = "dynamic_real"
)

// Widths are the input widths of the four groups: channels for categorical
// groups, features for real groups.
type Widths struct {
	StaticCategorical  int
	StaticReal         int
	DynamicCategorical int
	DynamicReal        int
}

// Group is the column range of one feature group in an assembled vector.
type Group struct {
	Name   string
	Offset int
	Width  int
}

type Layout struct {
	Groups []Group
	Total  int
}

// Layout returns the assembled column ranges for inputs of the given widths.
func (m *Model) Layout(w Widths) Layout {
	staticCat := w.StaticCategorical
	if m.EmbedStatic != nil && staticCat > 0 {
		staticCat = m.EmbedStatic.OutputDim()
	}
	dynamicCat := w.DynamicCategorical
	if m.EmbedDynamic != nil && dynamicCat > 0 {
		dynamicCat = m.EmbedDynamic.OutputDim()
	}

	layout := Layout{}
	for _, g := range []Group{
		{Name: StaticCategorical, Width: staticCat},
		{Name: StaticReal, Width: w.StaticReal},
		{Name: DynamicCategorical, Width: dynamicCat},
		{Name: DynamicReal, Width: w.DynamicReal},
	} {
		g.Offset = layout.Total
		layout.Groups = append(layout.Groups, g)
		layout.Total += g.Width
	}
	return layout
}

// Values stacks each example of an assembled batch into a time steps x
// features matrix.
func Values(assembled [][]ag.Node) []mat.Matrix {
	out := make([]mat.Matrix, len(assembled))
	for i, steps := range assembled {
		if len(steps) == 0 {
			continue
		}
		width := steps[0].Value().Size()
		data := make([]float64, 0, len(steps)*width)
		for _, step := range steps {
			data = append(data, step.Value().Data()...)
		}
		out[i] = mat.NewDense(len(steps), width, data)
	}
	return out
}
