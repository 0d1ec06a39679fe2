package assembler

import (
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"tsfeat/pkg/model/embedder"
)

const testTimeSteps = 4

func newProc(t *testing.T, m *Model) *Processor {
	t.Helper()
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	return m.NewProc(g).(*Processor)
}

func newEmbedder(t *testing.T, cardinalities, dimensions []int) *embedder.Model {
	t.Helper()
	m, err := embedder.New(cardinalities, dimensions)
	require.NoError(t, err)
	return m
}

func createBatch(batchSize int) Batch {
	b := Batch{}
	for i := 0; i < batchSize; i++ {
		b.StaticCategorical = append(b.StaticCategorical, []int{i % 3, (i + 1) % 2})
		b.StaticReal = append(b.StaticReal, []float64{float64(i), float64(i) + 0.5, -1})
		var dynamicCat [][]int
		var dynamicReal [][]float64
		for s := 0; s < testTimeSteps; s++ {
			dynamicCat = append(dynamicCat, []int{s % 7})
			dynamicReal = append(dynamicReal, []float64{float64(10*i + s), 2})
		}
		b.DynamicCategorical = append(b.DynamicCategorical, dynamicCat)
		b.DynamicReal = append(b.DynamicReal, dynamicReal)
	}
	return b
}

func TestNew(t *testing.T) {
	_, err := New(0, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	m, err := New(testTimeSteps, nil, nil)
	require.NoError(t, err)
	require.Nil(t, m.EmbedStatic)
	require.Nil(t, m.EmbedDynamic)
}

func TestProcessor_Assemble_Shape(t *testing.T) {
	tests := []struct {
		name         string
		embedStatic  *embedder.Model
		embedDynamic *embedder.Model
		features     int
	}{
		{name: "no embedders", features: 2 + 3 + 1 + 2},
		{name: "static embedder", embedStatic: newEmbedder(t, []int{3, 2}, []int{2, 4}), features: 6 + 3 + 1 + 2},
		{name: "dynamic embedder", embedDynamic: newEmbedder(t, []int{7}, []int{5}), features: 2 + 3 + 5 + 2},
		{
			name:         "both embedders",
			embedStatic:  newEmbedder(t, []int{3, 2}, []int{2, 4}),
			embedDynamic: newEmbedder(t, []int{7}, []int{5}),
			features:     6 + 3 + 5 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(testTimeSteps, tt.embedStatic, tt.embedDynamic)
			require.NoError(t, err)
			m.Init(rand.NewLockedRand(42))

			out, err := newProc(t, m).Assemble(createBatch(3))
			require.NoError(t, err)
			require.Len(t, out, 3)
			for _, steps := range out {
				require.Len(t, steps, testTimeSteps)
				for _, step := range steps {
					require.Equal(t, tt.features, step.Value().Size())
				}
			}

			layout := m.Layout(Widths{StaticCategorical: 2, StaticReal: 3, DynamicCategorical: 1, DynamicReal: 2})
			require.Equal(t, tt.features, layout.Total)

			values := Values(out)
			require.Len(t, values, 3)
			for _, v := range values {
				require.Equal(t, testTimeSteps, v.Rows())
				require.Equal(t, tt.features, v.Columns())
			}
		})
	}
}

func TestProcessor_Assemble_BroadcastsStaticReal(t *testing.T) {
	m, err := New(testTimeSteps, nil, nil)
	require.NoError(t, err)

	staticReal := [][]float64{{1, 2, 3}, {4, 5, 6}}
	out, err := newProc(t, m).Assemble(Batch{StaticReal: staticReal})
	require.NoError(t, err)

	values := Values(out)
	require.Len(t, values, 2)
	for i, v := range values {
		require.Equal(t, testTimeSteps, v.Rows())
		require.Equal(t, 3, v.Columns())
		for s := 0; s < testTimeSteps; s++ {
			for j := 0; j < 3; j++ {
				require.Equal(t, staticReal[i][j], v.At(s, j))
			}
		}
	}
}

func TestProcessor_Assemble_StaticPortionConstantOverTime(t *testing.T) {
	m, err := New(testTimeSteps, newEmbedder(t, []int{3, 2}, []int{2, 4}), nil)
	require.NoError(t, err)
	m.Init(rand.NewLockedRand(3))

	out, err := newProc(t, m).Assemble(createBatch(2))
	require.NoError(t, err)

	layout := m.Layout(Widths{StaticCategorical: 2, StaticReal: 3, DynamicCategorical: 1, DynamicReal: 2})
	staticWidth := layout.Groups[0].Width + layout.Groups[1].Width
	require.Equal(t, 9, staticWidth)

	for _, steps := range out {
		first := steps[0].Value().Data()[:staticWidth]
		for _, step := range steps[1:] {
			require.True(t, floats.Equal(first, step.Value().Data()[:staticWidth]))
		}
	}
}

func TestProcessor_Assemble_PassesCategoricalThrough(t *testing.T) {
	m, err := New(2, nil, nil)
	require.NoError(t, err)

	out, err := newProc(t, m).Assemble(Batch{
		StaticCategorical:  [][]int{{3, 1}},
		DynamicCategorical: [][][]int{{{5}, {6}}},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{3, 1, 5}, out[0][0].Value().Data())
	require.Equal(t, []float64{3, 1, 6}, out[0][1].Value().Data())
}

func TestProcessor_Assemble_GroupOrder(t *testing.T) {
	m, err := New(1, nil, nil)
	require.NoError(t, err)

	out, err := newProc(t, m).Assemble(Batch{
		StaticCategorical:  [][]int{{1}},
		StaticReal:         [][]float64{{2}},
		DynamicCategorical: [][][]int{{{3}}},
		DynamicReal:        [][][]float64{{{4}}},
	})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, out[0][0].Value().Data())
}

func TestProcessor_Assemble_IsDeterministic(t *testing.T) {
	m, err := New(testTimeSteps, newEmbedder(t, []int{3, 2}, []int{2, 4}), newEmbedder(t, []int{7}, []int{5}))
	require.NoError(t, err)
	m.Init(rand.NewLockedRand(42))
	batch := createBatch(3)

	first, err := newProc(t, m).Assemble(batch)
	require.NoError(t, err)
	second, err := newProc(t, m).Assemble(batch)
	require.NoError(t, err)

	a, b := Values(first), Values(second)
	for i := range a {
		require.Equal(t, a[i].Data(), b[i].Data())
	}
}

func TestProcessor_Assemble_Errors(t *testing.T) {
	m, err := New(testTimeSteps, newEmbedder(t, []int{3, 2}, []int{2, 4}), nil)
	require.NoError(t, err)

	batchMismatch := createBatch(3)
	batchMismatch.StaticReal = batchMismatch.StaticReal[:2]

	shortSeries := createBatch(2)
	shortSeries.DynamicReal[1] = shortSeries.DynamicReal[1][:testTimeSteps-1]

	raggedReal := createBatch(2)
	raggedReal.StaticReal[1] = []float64{1}

	outOfRange := createBatch(2)
	outOfRange.StaticCategorical[0] = []int{3, 0}

	wrongChannels := createBatch(2)
	wrongChannels.StaticCategorical[1] = []int{1}

	tests := []struct {
		name  string
		batch Batch
		err   error
	}{
		{name: "batch size", batch: batchMismatch, err: ErrShapeMismatch},
		{name: "time steps", batch: shortSeries, err: ErrShapeMismatch},
		{name: "ragged features", batch: raggedReal, err: ErrShapeMismatch},
		{name: "index out of range", batch: outOfRange, err: embedder.ErrIndexOutOfRange},
		{name: "embedded channel count", batch: wrongChannels, err: ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newProc(t, m).Assemble(tt.batch)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestModel_Layout(t *testing.T) {
	m, err := New(testTimeSteps, nil, newEmbedder(t, []int{7, 2}, []int{5, 1}))
	require.NoError(t, err)

	layout := m.Layout(Widths{StaticCategorical: 2, StaticReal: 0, DynamicCategorical: 2, DynamicReal: 3})
	require.Equal(t, []Group{
		{Name: StaticCategorical, Offset: 0, Width: 2},
		{Name: StaticReal, Offset: 2, Width: 0},
		{Name: DynamicCategorical, Offset: 2, Width: 6},
		{Name: DynamicReal, Offset: 8, Width: 3},
	}, layout.Groups)
	require.Equal(t, 11, layout.Total)
}
