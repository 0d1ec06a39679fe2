package model

import "tsfeat/pkg/model/assembler"

// NameMap implements a bidirectional mapping between a name and an index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func (f NameMap) Size() int {
	return len(f.IndexToName)
}

func (f NameMap) ContainsName(name string) (int, bool) {
	index, ok := f.NameToIndex[name]
	return index, ok
}

// ValueFor returns the index of name, adding it with the next free index if missing.
func (f NameMap) ValueFor(name string) int {
	index, ok := f.NameToIndex[name]
	if !ok {
		index = f.Size()
		f.Set(name, index)
	}
	return index
}

func NewNameMap() NameMap {
	return NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
}

// CategoricalColumn is a categorical data column and the index of each of its values
type CategoricalColumn struct {
	Column int
	Values NameMap
}

type Metadata struct {
	Columns []string

	// ItemColumn points to the column identifying the series a row belongs to
	ItemColumn int

	StaticCategorical  []CategoricalColumn
	StaticReal         []int
	DynamicCategorical []CategoricalColumn
	DynamicReal        []int
}

// Widths returns the input width of each feature group.
func (d *Metadata) Widths() assembler.Widths {
	return assembler.Widths{
		StaticCategorical:  len(d.StaticCategorical),
		StaticReal:         len(d.StaticReal),
		DynamicCategorical: len(d.DynamicCategorical),
		DynamicReal:        len(d.DynamicReal),
	}
}

// ColumnNames returns the data column names of the given column indexes.
func (d *Metadata) ColumnNames(columns []int) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.Columns[c]
	}
	return names
}

func CategoricalColumns(columns []CategoricalColumn) []int {
	out := make([]int, len(columns))
	for i, c := range columns {
		out[i] = c.Column
	}
	return out
}
