// Package assembler combines static and dynamic, categorical and real valued
// time series features into one feature vector per example and time step.
package assembler

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"tsfeat/pkg/model/embedder"
)

var (
	_ nn.Model     = &Model{}
	_ nn.Processor = &Processor{}
)

var (
	ErrInvalidConfig = errors.New("invalid assembler configuration")
	// ErrShapeMismatch is the error the embedders return for a wrong channel count.
	ErrShapeMismatch = embedder.ErrShapeMismatch
)

// Batch holds the four feature groups of a batch. A nil group is absent.
type Batch struct {
	// StaticCategorical is batch x channels
	StaticCategorical [][]int
	// StaticReal is batch x features
	StaticReal [][]float64
	// DynamicCategorical is batch x T x channels
	DynamicCategorical [][][]int
	// DynamicReal is batch x T x features
	DynamicReal [][][]float64
}

// Size returns the batch size, taken from the first present group.
func (b *Batch) Size() int {
	switch {
	case b.StaticCategorical != nil:
		return len(b.StaticCategorical)
	case b.StaticReal != nil:
		return len(b.StaticReal)
	case b.DynamicCategorical != nil:
		return len(b.DynamicCategorical)
	default:
		return len(b.DynamicReal)
	}
}

// Model assembles features over TimeSteps steps, optionally embedding the
// categorical groups. Embedders are chosen at construction and never replaced.
type Model struct {
	TimeSteps    int
	EmbedStatic  *embedder.Model
	EmbedDynamic *embedder.Model
}

func New(timeSteps int, embedStatic, embedDynamic *embedder.Model) (*Model, error) {
	if timeSteps <= 0 {
		return nil, fmt.Errorf("%w: time steps must be positive, got %d", ErrInvalidConfig, timeSteps)
	}
	return &Model{
		TimeSteps:    timeSteps,
		EmbedStatic:  embedStatic,
		EmbedDynamic: embedDynamic,
	}, nil
}

func (m *Model) Init(generator *rand.LockedRand) {
	if m.EmbedStatic != nil {
		m.EmbedStatic.Init(generator)
	}
	if m.EmbedDynamic != nil {
		m.EmbedDynamic.Init(generator)
	}
}

type Processor struct {
	nn.BaseProcessor
	model                 *Model
	staticEmbedProcessor  *embedder.Processor
	dynamicEmbedProcessor *embedder.Processor
}

func (m *Model) NewProc(g *ag.Graph) nn.Processor {
	p := &Processor{
		BaseProcessor: nn.BaseProcessor{
			Model:             m,
			Mode:              nn.Inference,
			Graph:             g,
			FullSeqProcessing: true,
		},
		model: m,
	}
	if m.EmbedStatic != nil {
		p.staticEmbedProcessor = m.EmbedStatic.NewProc(g).(*embedder.Processor)
	}
	if m.EmbedDynamic != nil {
		p.dynamicEmbedProcessor = m.EmbedDynamic.NewProc(g).(*embedder.Processor)
	}
	return p
}

func (p *Processor) Forward(xs ...ag.Node) []ag.Node {
	panic("Forward not implemented... please use Assemble instead")
}

// Assemble returns batch x TimeSteps vectors, each the concatenation of the
// static categorical, static real, dynamic categorical and dynamic real
// features of that step.
func (p *Processor) Assemble(batch Batch) ([][]ag.Node, error) {
	size := batch.Size()

	staticCat, err := p.processStaticCategorical(batch.StaticCategorical, size)
	if err != nil {
		return nil, fmt.Errorf("static categorical: %w", err)
	}
	staticReal, err := p.processStaticReal(batch.StaticReal, size)
	if err != nil {
		return nil, fmt.Errorf("static real: %w", err)
	}
	dynamicCat, err := p.processDynamicCategorical(batch.DynamicCategorical, size)
	if err != nil {
		return nil, fmt.Errorf("dynamic categorical: %w", err)
	}
	dynamicReal, err := p.processDynamicReal(batch.DynamicReal, size)
	if err != nil {
		return nil, fmt.Errorf("dynamic real: %w", err)
	}

	g := p.Graph
	out := make([][]ag.Node, size)
	for i := range out {
		out[i] = make([]ag.Node, p.model.TimeSteps)
		for t := range out[i] {
			var parts []ag.Node
			for _, group := range [][][]ag.Node{staticCat, staticReal, dynamicCat, dynamicReal} {
				if group != nil {
					parts = append(parts, group[i][t])
				}
			}
			switch len(parts) {
			case 0:
				return nil, fmt.Errorf("%w: no features to assemble", ErrShapeMismatch)
			case 1:
				out[i][t] = parts[0]
			default:
				out[i][t] = g.Concat(parts...)
			}
		}
	}
	return out, nil
}

func (p *Processor) processStaticCategorical(features [][]int, size int) ([][]ag.Node, error) {
	if err := checkBatchSize(len(features), size, features == nil); err != nil {
		return nil, err
	}
	if features == nil {
		return nil, nil
	}
	var nodes []ag.Node
	if p.staticEmbedProcessor != nil {
		encoded, err := p.staticEmbedProcessor.Encode(features)
		if err != nil {
			return nil, err
		}
		nodes = encoded
	} else {
		width, err := intWidth(features)
		if err != nil || width == 0 {
			return nil, err
		}
		nodes = make([]ag.Node, len(features))
		for i, row := range features {
			nodes[i] = p.Graph.NewVariable(mat.NewVecDense(toFloats(row)), false)
		}
	}
	return p.broadcast(nodes), nil
}

func (p *Processor) processStaticReal(features [][]float64, size int) ([][]ag.Node, error) {
	if err := checkBatchSize(len(features), size, features == nil); err != nil {
		return nil, err
	}
	width, err := floatWidth(features)
	if err != nil || width == 0 {
		return nil, err
	}
	nodes := make([]ag.Node, len(features))
	for i, row := range features {
		nodes[i] = p.Graph.NewVariable(mat.NewVecDense(append([]float64(nil), row...)), false)
	}
	return p.broadcast(nodes), nil
}

func (p *Processor) processDynamicCategorical(features [][][]int, size int) ([][]ag.Node, error) {
	if err := checkBatchSize(len(features), size, features == nil); err != nil {
		return nil, err
	}
	if features == nil {
		return nil, nil
	}
	if err := p.checkTimeSteps(len(features), func(i int) int { return len(features[i]) }); err != nil {
		return nil, err
	}
	out := make([][]ag.Node, len(features))
	if p.dynamicEmbedProcessor != nil {
		for i, series := range features {
			encoded, err := p.dynamicEmbedProcessor.Encode(series)
			if err != nil {
				return nil, fmt.Errorf("example %d: %w", i, err)
			}
			out[i] = encoded
		}
		return out, nil
	}
	var rows [][]int
	for _, series := range features {
		rows = append(rows, series...)
	}
	width, err := intWidth(rows)
	if err != nil || width == 0 {
		return nil, err
	}
	for i, series := range features {
		out[i] = make([]ag.Node, len(series))
		for t, row := range series {
			out[i][t] = p.Graph.NewVariable(mat.NewVecDense(toFloats(row)), false)
		}
	}
	return out, nil
}

func (p *Processor) processDynamicReal(features [][][]float64, size int) ([][]ag.Node, error) {
	if err := checkBatchSize(len(features), size, features == nil); err != nil {
		return nil, err
	}
	if features == nil {
		return nil, nil
	}
	if err := p.checkTimeSteps(len(features), func(i int) int { return len(features[i]) }); err != nil {
		return nil, err
	}
	var rows [][]float64
	for _, series := range features {
		rows = append(rows, series...)
	}
	width, err := floatWidth(rows)
	if err != nil || width == 0 {
		return nil, err
	}
	out := make([][]ag.Node, len(features))
	for i, series := range features {
		out[i] = make([]ag.Node, len(series))
		for t, row := range series {
			out[i][t] = p.Graph.NewVariable(mat.NewVecDense(append([]float64(nil), row...)), false)
		}
	}
	return out, nil
}

// broadcast repeats each static node over all time steps. Every step refers
// to the same node.
func (p *Processor) broadcast(nodes []ag.Node) [][]ag.Node {
	out := make([][]ag.Node, len(nodes))
	for i, node := range nodes {
		out[i] = make([]ag.Node, p.model.TimeSteps)
		for t := range out[i] {
			out[i][t] = node
		}
	}
	return out
}

func (p *Processor) checkTimeSteps(size int, length func(i int) int) error {
	for i := 0; i < size; i++ {
		if l := length(i); l != p.model.TimeSteps {
			return fmt.Errorf("%w: example %d has %d time steps, expected %d", ErrShapeMismatch, i, l, p.model.TimeSteps)
		}
	}
	return nil
}

func checkBatchSize(got, expected int, absent bool) error {
	if absent || got == expected {
		return nil
	}
	return fmt.Errorf("%w: batch size %d, expected %d", ErrShapeMismatch, got, expected)
}

func intWidth(rows [][]int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrShapeMismatch, i, len(row), width)
		}
	}
	return width, nil
}

func floatWidth(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, expected %d", ErrShapeMismatch, i, len(row), width)
		}
	}
	return width, nil
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
