package io

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strconv"

	"tsfeat/pkg/config"
	"tsfeat/pkg/model"
	"tsfeat/pkg/model/assembler"
)

// Series holds the features of one item over all time steps.
type Series struct {
	Item string
	// Line is the data line the series starts at
	Line int

	StaticCategorical  []int
	StaticReal         []float64
	DynamicCategorical [][]int
	DynamicReal        [][]float64
}

type DataParameters struct {
	// DataFile is read from stdin when empty
	DataFile  string
	TimeSteps int
	// Config describes the columns when no metadata exists yet
	Config *config.Config
}

type DataError struct {
	Line  int
	Error string
}

// LoadData reads a long format CSV file with one row per item and time step.
// Rows of an item must be contiguous. When metaData is nil a new one is built
// from p.Config and categorical values are indexed as they are found.
func LoadData(p DataParameters, metaData *model.Metadata) (*model.Metadata, []*Series, []DataError, error) {
	var input io.Reader = os.Stdin
	if p.DataFile != "" {
		inputFile, err := os.Open(p.DataFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("error opening file: %w", err)
		}
		defer inputFile.Close()
		input = inputFile
	}
	return ReadData(input, p, metaData)
}

func ReadData(input io.Reader, p DataParameters, metaData *model.Metadata) (*model.Metadata, []*Series, []DataError, error) {
	reader := csv.NewReader(input)
	reader.Comma = ','
	reader.FieldsPerRecord = -1

	//First line is expected to be a header
	record, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error reading data header: %w", err)
	}

	newMetadata := false
	if metaData == nil {
		if p.Config == nil {
			return nil, nil, nil, fmt.Errorf("either metadata or config is required")
		}
		metaData, err = buildMetadata(p.Config, record)
		if err != nil {
			return nil, nil, nil, err
		}
		newMetadata = true
	} else if err := checkHeader(metaData, record); err != nil {
		return nil, nil, nil, err
	}

	var errors []DataError
	var result []*Series
	var rows [][]string
	currentLine := 2
	startLine := currentLine

	flush := func() {
		if len(rows) == 0 {
			return
		}
		series, err := parseSeries(metaData, newMetadata, p.TimeSteps, rows)
		if err != nil {
			errors = append(errors, DataError{Line: startLine, Error: err.Error()})
		} else {
			series.Line = startLine
			result = append(result, series)
		}
		rows = nil
	}

	for record, err = reader.Read(); err == nil; record, err = reader.Read() {
		if len(record) != len(metaData.Columns) {
			errors = append(errors, DataError{
				Line:  currentLine,
				Error: fmt.Sprintf("expected %d fields, got %d", len(metaData.Columns), len(record)),
			})
			currentLine++
			continue
		}
		if len(rows) > 0 && rows[0][metaData.ItemColumn] != record[metaData.ItemColumn] {
			flush()
		}
		if len(rows) == 0 {
			startLine = currentLine
		}
		rows = append(rows, record)
		currentLine++
	}
	if err != io.EOF {
		return nil, nil, nil, fmt.Errorf("error reading data at line %d: %w", currentLine, err)
	}
	flush()

	return metaData, result, errors, nil
}

func parseSeries(metaData *model.Metadata, newMetadata bool, timeSteps int, rows [][]string) (*Series, error) {
	item := rows[0][metaData.ItemColumn]
	if len(rows) != timeSteps {
		return nil, fmt.Errorf("item %s has %d time steps, expected %d", item, len(rows), timeSteps)
	}
	first := rows[0]
	for _, row := range rows[1:] {
		for _, c := range staticColumns(metaData) {
			if row[c] != first[c] {
				return nil, fmt.Errorf("static feature %s of item %s changes over time", metaData.Columns[c], item)
			}
		}
	}

	// Reals go first: categorical values are indexed only for items that parse.
	s := &Series{Item: item}
	var err error
	if s.StaticReal, err = parseRealFeatures(metaData, metaData.StaticReal, first); err != nil {
		return nil, err
	}
	for _, row := range rows {
		reals, err := parseRealFeatures(metaData, metaData.DynamicReal, row)
		if err != nil {
			return nil, err
		}
		s.DynamicReal = append(s.DynamicReal, reals)
	}

	if s.StaticCategorical, err = parseCategoricalFeatures(metaData, metaData.StaticCategorical, newMetadata, first); err != nil {
		return nil, err
	}
	for _, row := range rows {
		categorical, err := parseCategoricalFeatures(metaData, metaData.DynamicCategorical, newMetadata, row)
		if err != nil {
			return nil, err
		}
		s.DynamicCategorical = append(s.DynamicCategorical, categorical)
	}
	return s, nil
}

func staticColumns(metaData *model.Metadata) []int {
	return append(model.CategoricalColumns(metaData.StaticCategorical), metaData.StaticReal...)
}

func parseCategoricalFeatures(metaData *model.Metadata, columns []model.CategoricalColumn, newMetadata bool, record []string) ([]int, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	categoricalFeatures := make([]int, len(columns))
	for i, column := range columns {
		value := record[column.Column]
		if newMetadata {
			categoricalFeatures[i] = column.Values.ValueFor(value)
			continue
		}
		index, ok := column.Values.ContainsName(value)
		if !ok {
			return nil, fmt.Errorf("unknown value %s for categorical attribute %s", value, metaData.Columns[column.Column])
		}
		categoricalFeatures[i] = index
	}
	return categoricalFeatures, nil
}

func parseRealFeatures(metaData *model.Metadata, columns []int, record []string) ([]float64, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	features := make([]float64, len(columns))
	for i, column := range columns {
		value, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing feature %s: %w", metaData.Columns[column], err)
		}
		features[i] = value
	}
	return features, nil
}

func buildMetadata(c *config.Config, header []string) (*model.Metadata, error) {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("column %s not found in data header", name)
		}
		return i, nil
	}
	categorical := func(features []config.CategoricalFeature) ([]model.CategoricalColumn, error) {
		var out []model.CategoricalColumn
		for _, f := range features {
			i, err := lookup(f.Column)
			if err != nil {
				return nil, err
			}
			out = append(out, model.CategoricalColumn{Column: i, Values: model.NewNameMap()})
		}
		return out, nil
	}
	realColumns := func(names []string) ([]int, error) {
		var out []int
		for _, name := range names {
			i, err := lookup(name)
			if err != nil {
				return nil, err
			}
			out = append(out, i)
		}
		return out, nil
	}

	metaData := &model.Metadata{Columns: header}
	var err error
	if metaData.ItemColumn, err = lookup(c.ItemColumn); err != nil {
		return nil, err
	}
	if metaData.StaticCategorical, err = categorical(c.StaticCategorical); err != nil {
		return nil, err
	}
	if metaData.StaticReal, err = realColumns(c.StaticReal); err != nil {
		return nil, err
	}
	if metaData.DynamicCategorical, err = categorical(c.DynamicCategorical); err != nil {
		return nil, err
	}
	if metaData.DynamicReal, err = realColumns(c.DynamicReal); err != nil {
		return nil, err
	}
	return metaData, nil
}

func checkHeader(metaData *model.Metadata, header []string) error {
	if len(header) != len(metaData.Columns) {
		return fmt.Errorf("data header has %d columns, model expects %d", len(header), len(metaData.Columns))
	}
	for i, col := range header {
		if col != metaData.Columns[i] {
			return fmt.Errorf("data header column %d is %s, model expects %s", i, col, metaData.Columns[i])
		}
	}
	return nil
}

// ToBatch converts series to the feature groups of an assembler batch. Groups
// without columns are left absent.
func ToBatch(metaData *model.Metadata, series []*Series) assembler.Batch {
	w := metaData.Widths()
	batch := assembler.Batch{}
	for _, s := range series {
		if w.StaticCategorical > 0 {
			batch.StaticCategorical = append(batch.StaticCategorical, s.StaticCategorical)
		}
		if w.StaticReal > 0 {
			batch.StaticReal = append(batch.StaticReal, s.StaticReal)
		}
		if w.DynamicCategorical > 0 {
			batch.DynamicCategorical = append(batch.DynamicCategorical, s.DynamicCategorical)
		}
		if w.DynamicReal > 0 {
			batch.DynamicReal = append(batch.DynamicReal, s.DynamicReal)
		}
	}
	return batch
}

func SaveModel(model *model.Model, writer io.Writer) error {
	encoder := gob.NewEncoder(writer)
	err := encoder.Encode(model)
	if err != nil {
		return fmt.Errorf("error encoding model: %w", err)
	}
	return nil
}

func LoadModel(input io.Reader) (*model.Model, error) {
	decoder := gob.NewDecoder(input)
	model := model.Model{}
	err := decoder.Decode(&model)
	if err != nil {
		return nil, fmt.Errorf("error decoding model: %w", err)
	}
	return &model, nil
}
