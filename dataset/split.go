package dataset

import (
	"github.com/ezoic/intelicar/tabular"
)

// Split defaults.
const (
	DefaultTestSize        = 0.2
	DefaultSeed     uint64 = 42
)

// TrainTestSplit shuffles sales with seed and returns ceil(n*testSize) rows
// as test and the rest as train. The same seed always gives the same split.
func TrainTestSplit(sales []Sale, testSize float64, seed uint64) (train, test []Sale) {
	trainIdx, testIdx := tabular.SplitIndices(len(sales), testSize, seed)
	train = make([]Sale, len(trainIdx))
	for k, i := range trainIdx {
		train[k] = sales[i]
	}
	test = make([]Sale, len(testIdx))
	for k, i := range testIdx {
		test[k] = sales[i]
	}
	return train, test
}

// ToFrame converts sales to a frame with the Columns header.
func ToFrame(sales []Sale) (*tabular.Frame, error) {
	rows := make([][]string, len(sales))
	for i, s := range sales {
		rows[i] = s.Row()
	}
	return tabular.NewFrame(Columns, rows)
}
