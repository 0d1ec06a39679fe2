// Package embedder maps integer coded categorical channels to learned dense
// embeddings, one table per channel, concatenated along the feature axis.
package embedder

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
)

var (
	_ nn.Model     = &Model{}
	_ nn.Processor = &Processor{}
)

var (
	ErrConfigMismatch  = errors.New("cardinalities and embedding dimensions differ in length")
	ErrInvalidConfig   = errors.New("invalid embedder configuration")
	ErrIndexOutOfRange = errors.New("categorical value out of range")
	ErrShapeMismatch   = errors.New("feature shape mismatch")
)

// Model holds one embedding table per categorical channel. Tables[i][v] is
// the embedding of value v of channel i.
type Model struct {
	Cardinalities []int
	Dimensions    []int
	Tables        [][]*nn.Param
}

func New(cardinalities, dimensions []int) (*Model, error) {
	if len(cardinalities) != len(dimensions) {
		return nil, fmt.Errorf("%w: %d cardinalities, %d dimensions", ErrConfigMismatch, len(cardinalities), len(dimensions))
	}
	if len(cardinalities) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidConfig)
	}
	tables := make([][]*nn.Param, len(cardinalities))
	for i := range tables {
		c, d := cardinalities[i], dimensions[i]
		if c <= 0 || d <= 0 {
			return nil, fmt.Errorf("%w: channel %d has cardinality %d and dimension %d", ErrInvalidConfig, i, c, d)
		}
		tables[i] = make([]*nn.Param, c)
		for v := range tables[i] {
			tables[i][v] = nn.NewParam(mat.NewEmptyVecDense(d))
		}
	}
	return &Model{
		Cardinalities: append([]int(nil), cardinalities...),
		Dimensions:    append([]int(nil), dimensions...),
		Tables:        tables,
	}, nil
}

func (m *Model) Init(generator *rand.LockedRand) {
	gain := initializers.Gain(ag.OpIdentity)
	for _, table := range m.Tables {
		for _, row := range table {
			initializers.XavierUniform(row.Value(), gain, generator)
		}
	}
}

func (m *Model) NumChannels() int {
	return len(m.Tables)
}

// OutputDim is the size of an encoded position, the sum of the channel dimensions.
func (m *Model) OutputDim() int {
	size := 0
	for _, d := range m.Dimensions {
		size += d
	}
	return size
}

type Processor struct {
	nn.BaseProcessor
	model *Model
}

func (m *Model) NewProc(g *ag.Graph) nn.Processor {
	return &Processor{
		BaseProcessor: nn.BaseProcessor{
			Model:             m,
			Mode:              nn.Inference,
			Graph:             g,
			FullSeqProcessing: false,
		},
		model: m,
	}
}

func (p *Processor) Forward(xs ...ag.Node) []ag.Node {
	panic("Forward not implemented... please use Encode instead")
}

// Encode embeds each row of features. A row carries one value per channel;
// the result holds one vector of size OutputDim per row.
func (p *Processor) Encode(features [][]int) ([]ag.Node, error) {
	out := make([]ag.Node, len(features))
	for i, row := range features {
		node, err := p.encodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = node
	}
	return out, nil
}

func (p *Processor) encodeRow(row []int) (ag.Node, error) {
	if len(row) != p.model.NumChannels() {
		return nil, fmt.Errorf("%w: got %d channels, expected %d", ErrShapeMismatch, len(row), p.model.NumChannels())
	}
	g := p.Graph
	embeddings := make([]ag.Node, len(row))
	for i, value := range row {
		if value < 0 || value >= p.model.Cardinalities[i] {
			return nil, fmt.Errorf("%w: channel %d value %d, cardinality %d", ErrIndexOutOfRange, i, value, p.model.Cardinalities[i])
		}
		embeddings[i] = g.NewWrap(p.model.Tables[i][value])
	}
	if len(embeddings) == 1 {
		return embeddings[0], nil
	}
	return g.Concat(embeddings...), nil
}
