package pkg

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"tsfeat/pkg/io"
)

// Inspect logs the feature layout of a saved model.
func Inspect(modelFileName string) error {
	modelFile, err := os.Open(modelFileName)
	if err != nil {
		return fmt.Errorf("error opening model file %s: %w", modelFileName, err)
	}
	defer modelFile.Close()

	m, err := io.LoadModel(modelFile)
	if err != nil {
		return fmt.Errorf("error loading model from file %s: %w", modelFileName, err)
	}
	for _, c := range m.MetaData.StaticCategorical {
		log.Info().Str("Column", m.MetaData.Columns[c.Column]).Int("Values", c.Values.Size()).Msg("Static categorical")
	}
	for _, c := range m.MetaData.DynamicCategorical {
		log.Info().Str("Column", m.MetaData.Columns[c.Column]).Int("Values", c.Values.Size()).Msg("Dynamic categorical")
	}
	log.Info().Strs("StaticReal", m.MetaData.ColumnNames(m.MetaData.StaticReal)).
		Strs("DynamicReal", m.MetaData.ColumnNames(m.MetaData.DynamicReal)).Msg("Real features")
	logLayout(m)
	return nil
}
