package pkg

import (
	"encoding/csv"
	"fmt"
	gio "io"
	"os"
	"strconv"

	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/rs/zerolog/log"

	"tsfeat/pkg/io"
	"tsfeat/pkg/model"
	"tsfeat/pkg/model/assembler"
)

// Assemble runs the model in modelFileName on the series in inputFileName
// (stdin when empty) and writes one CSV row per item and time step to
// outputFileName (stdout when empty).
func Assemble(modelFileName, inputFileName, outputFileName string, batchSize int) error {
	modelFile, err := os.Open(modelFileName)
	if err != nil {
		return fmt.Errorf("error opening model file %s: %w", modelFileName, err)
	}
	defer modelFile.Close()

	m, err := io.LoadModel(modelFile)
	if err != nil {
		return fmt.Errorf("error loading model from file %s: %w", modelFileName, err)
	}

	_, data, dataErrors, err := io.LoadData(io.DataParameters{
		DataFile:  inputFileName,
		TimeSteps: m.Assembler.TimeSteps,
	}, m.MetaData)
	if err != nil {
		return fmt.Errorf("error loading data from %s: %w", inputFileName, err)
	}
	printDataErrors(dataErrors)
	if len(data) == 0 {
		return fmt.Errorf("no data to assemble")
	}

	var output gio.Writer = os.Stdout
	if outputFileName != "" {
		outputFile, err := os.Create(outputFileName)
		if err != nil {
			return fmt.Errorf("error creating output file %s: %w", outputFileName, err)
		}
		defer outputFile.Close()
		output = outputFile
	}
	return assembleInternal(m, io.NewDataSet(data, batchSize), output)
}

func assembleInternal(m *model.Model, data *io.DataSet, output gio.Writer) error {
	layout := m.Layout()
	writer := csv.NewWriter(output)
	if err := writer.Write(header(layout)); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}

	for batch := data.Next(); len(batch) > 0; batch = data.Next() {
		values, err := assembleBatch(m, batch)
		if err != nil {
			return err
		}
		for i, series := range batch {
			for t := 0; t < values[i].Rows(); t++ {
				row := make([]string, 0, 2+layout.Total)
				row = append(row, series.Item, strconv.Itoa(t))
				for j := 0; j < values[i].Columns(); j++ {
					row = append(row, strconv.FormatFloat(values[i].At(t, j), 'g', -1, 64))
				}
				if err := writer.Write(row); err != nil {
					return fmt.Errorf("error writing output: %w", err)
				}
			}
		}
		log.Debug().Int("items", len(batch)).Msg("Batch assembled")
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	log.Info().Int("items", data.Size()).Int("features", layout.Total).Msg("Features assembled")
	return nil
}

func assembleBatch(m *model.Model, batch []*io.Series) ([]mat.Matrix, error) {
	g := ag.NewGraph()
	defer g.Clear()
	proc := m.Assembler.NewProc(g).(*assembler.Processor)
	assembled, err := proc.Assemble(io.ToBatch(m.MetaData, batch))
	if err != nil {
		return nil, fmt.Errorf("error assembling batch starting at line %d: %w", batch[0].Line, err)
	}
	return assembler.Values(assembled), nil
}

func header(layout assembler.Layout) []string {
	out := []string{"item", "t"}
	for _, g := range layout.Groups {
		for k := 0; k < g.Width; k++ {
			out = append(out, fmt.Sprintf("%s_%d", g.Name, k))
		}
	}
	return out
}
