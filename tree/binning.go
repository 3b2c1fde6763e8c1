// Package tree implements histogram-based regression trees.
//
// Features are first discretized by a Binner into at most 255 quantile bins
// per column. Trees are grown on the binned matrix, which keeps split search
// linear in the number of samples, and store both the bin index and the raw
// threshold of every split so they can score raw or pre-binned rows:
//
//	binner := tree.FitBinner(X, tree.DefaultMaxBins)
//	data := binner.Transform(X)
//	t := tree.Grow(data, binner, y, nil, tree.Params{MaxDepth: 8}, rng)
//	price := t.PredictRow(row)
package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxBins is the largest bin count a uint8 bin index can address.
const DefaultMaxBins = 255

// Binner maps raw feature values to bin indices. Bin k of feature j holds
// values in (Edges[j][k-1], Edges[j][k]]; the last bin is unbounded above.
type Binner struct {
	Edges [][]float64
}

// BinnedData is a column-major matrix of bin indices.
type BinnedData struct {
	NSamples  int
	NFeatures int
	// Bins[j][i] is the bin of sample i for feature j.
	Bins [][]uint8
	// NBins[j] is the number of bins feature j can take.
	NBins []int
}

// FitBinner computes quantile bin edges for every column of X. Columns with
// at most maxBins distinct values get one bin per value.
func FitBinner(X mat.Matrix, maxBins int) *Binner {
	if maxBins <= 1 || maxBins > DefaultMaxBins {
		maxBins = DefaultMaxBins
	}
	r, c := X.Dims()
	b := &Binner{Edges: make([][]float64, c)}

	values := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			values[i] = X.At(i, j)
		}
		b.Edges[j] = quantileEdges(values, maxBins)
	}
	return b
}

// quantileEdges sorts values in place and returns the split points.
func quantileEdges(values []float64, maxBins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)

	unique := values[:0:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			unique = append(unique, v)
		}
	}

	if len(unique) <= maxBins {
		edges := make([]float64, 0, len(unique)-1)
		for k := 1; k < len(unique); k++ {
			edges = append(edges, (unique[k-1]+unique[k])/2)
		}
		return edges
	}

	n := len(values)
	edges := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		q := values[k*n/maxBins]
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	// the maximum must not be an edge or the top bin would be empty
	if last := len(edges) - 1; last >= 0 && edges[last] >= values[n-1] {
		edges = edges[:last]
	}
	return edges
}

// NFeatures returns the number of columns the binner was fitted on.
func (b *Binner) NFeatures() int { return len(b.Edges) }

// Bin returns the bin index of x for feature j.
func (b *Binner) Bin(j int, x float64) uint8 {
	return uint8(sort.SearchFloat64s(b.Edges[j], x))
}

// Threshold returns the raw upper bound of bin k of feature j.
func (b *Binner) Threshold(j int, k uint8) float64 {
	return b.Edges[j][k]
}

// Transform bins every value of X.
func (b *Binner) Transform(X mat.Matrix) *BinnedData {
	r, c := X.Dims()
	data := &BinnedData{
		NSamples:  r,
		NFeatures: c,
		Bins:      make([][]uint8, c),
		NBins:     make([]int, c),
	}
	for j := 0; j < c; j++ {
		col := make([]uint8, r)
		for i := 0; i < r; i++ {
			col[i] = b.Bin(j, X.At(i, j))
		}
		data.Bins[j] = col
		data.NBins[j] = len(b.Edges[j]) + 1
	}
	return data
}
