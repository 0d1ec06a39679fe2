package model

import "tsfeat/pkg/model/assembler"

// Model is the persisted feature assembler together with the data layout it was built for.
type Model struct {
	MetaData  *Metadata
	Assembler *assembler.Model
}

// Layout returns the column ranges of the assembled features.
func (m *Model) Layout() assembler.Layout {
	return m.Assembler.Layout(m.MetaData.Widths())
}
