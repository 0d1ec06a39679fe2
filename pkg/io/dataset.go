package io

// DataSet serves series in batches of at most BatchSize elements, in file order.
type DataSet struct {
	Data         []*Series
	BatchSize    int
	currentIndex int
}

// ResetOrder rewinds the data set to its first batch.
func (d *DataSet) ResetOrder() {
	d.currentIndex = 0
}

// Next returns the next batch, empty once the data set is exhausted.
func (d *DataSet) Next() []*Series {
	batch := make([]*Series, 0, d.BatchSize)
	for ; d.currentIndex < len(d.Data) && len(batch) < d.BatchSize; d.currentIndex++ {
		batch = append(batch, d.Data[d.currentIndex])
	}
	return batch
}

func (d *DataSet) Size() int {
	return len(d.Data)
}

func NewDataSet(data []*Series, batchSize int) *DataSet {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &DataSet{Data: data, BatchSize: batchSize}
}
