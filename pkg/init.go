package pkg

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/rs/zerolog/log"

	"tsfeat/pkg/config"
	"tsfeat/pkg/io"
	"tsfeat/pkg/model"
	"tsfeat/pkg/model/assembler"
	"tsfeat/pkg/model/embedder"
)

// Init builds a feature assembler for the layout in configFile, indexing the
// categorical values found in dataFile, and saves it to outputFile.
func Init(configFile, dataFile, outputFile string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}

	metaData, data, dataErrors, err := io.LoadData(io.DataParameters{
		DataFile:  dataFile,
		TimeSteps: c.TimeSteps,
		Config:    c,
	}, nil)
	if err != nil {
		return fmt.Errorf("error reading data: %w", err)
	}
	printDataErrors(dataErrors)
	log.Info().Int("items", len(data)).Int("skipped", len(dataErrors)).Msg("Data loaded")

	m, err := BuildModel(c, metaData)
	if err != nil {
		return err
	}
	logLayout(m)

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("error creating output file %s: %w", outputFile, err)
	}
	defer file.Close()
	return io.SaveModel(m, file)
}

// BuildModel creates and initializes the embedders and assembler described by
// c. Cardinalities missing from c are taken from the values indexed in metaData.
func BuildModel(c *config.Config, metaData *model.Metadata) (*model.Model, error) {
	var embedStatic, embedDynamic *embedder.Model
	var err error
	if c.EmbedStatic && len(c.StaticCategorical) > 0 {
		embedStatic, err = newEmbedder(c.StaticCategorical, metaData.StaticCategorical, metaData)
		if err != nil {
			return nil, fmt.Errorf("static embedder: %w", err)
		}
	}
	if c.EmbedDynamic && len(c.DynamicCategorical) > 0 {
		embedDynamic, err = newEmbedder(c.DynamicCategorical, metaData.DynamicCategorical, metaData)
		if err != nil {
			return nil, fmt.Errorf("dynamic embedder: %w", err)
		}
	}

	a, err := assembler.New(c.TimeSteps, embedStatic, embedDynamic)
	if err != nil {
		return nil, err
	}
	a.Init(rand.NewLockedRand(c.Seed))

	return &model.Model{
		MetaData:  metaData,
		Assembler: a,
	}, nil
}

func newEmbedder(features []config.CategoricalFeature, columns []model.CategoricalColumn, metaData *model.Metadata) (*embedder.Model, error) {
	cardinalities := make([]int, len(features))
	dimensions := make([]int, len(features))
	for i, f := range features {
		observed := columns[i].Values.Size()
		cardinalities[i] = f.Cardinality
		if cardinalities[i] == 0 {
			cardinalities[i] = observed
		}
		if observed > cardinalities[i] {
			return nil, fmt.Errorf("column %s has %d distinct values, cardinality is %d",
				metaData.Columns[columns[i].Column], observed, cardinalities[i])
		}
		dimensions[i] = f.EmbeddingDim
	}
	return embedder.New(cardinalities, dimensions)
}

func logLayout(m *model.Model) {
	layout := m.Layout()
	for _, g := range layout.Groups {
		log.Info().Str("Group", g.Name).Int("Offset", g.Offset).Int("Width", g.Width).Msg("Feature group")
	}
	log.Info().Int("TimeSteps", m.Assembler.TimeSteps).Int("Features", layout.Total).Msg("Assembled layout")
}
