package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// OneHotEncoder encodes categorical string features as 0/1 indicator columns.
// Categories unseen during Fit encode as all zeros.
type OneHotEncoder struct {
	State *model.StateManager

	// Categories holds the sorted categories of every input feature.
	Categories [][]string

	// CategoryToIdx maps category to its position within Categories[j].
	CategoryToIdx []map[string]int

	NFeatures int

	// NOutputs is the total number of indicator columns.
	NOutputs int
}

// NewOneHotEncoder returns an unfitted encoder.
//
//	encoder := preprocessing.NewOneHotEncoder()
//	err := encoder.Fit(data)
//	encoded, err := encoder.Transform(data)
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager()}
}

// IsFitted reports whether Fit has completed.
func (e *OneHotEncoder) IsFitted() bool { return e.State.IsFitted() }

// Fit learns the categories of every column of data (n_samples × n_features).
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer scigoErrors.Recover(&err, "OneHotEncoder.Fit")
	if len(data) == 0 || len(data[0]) == 0 {
		return scigoErrors.NewModelError("OneHotEncoder.Fit", "empty data", scigoErrors.ErrEmptyData)
	}

	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return scigoErrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), i)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)
	e.NOutputs = 0

	for j := 0; j < nFeatures; j++ {
		seen := make(map[string]struct{})
		for _, row := range data {
			seen[row[j]] = struct{}{}
		}

		categories := make([]string, 0, len(seen))
		for c := range seen {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		idx := make(map[string]int, len(categories))
		for i, c := range categories {
			idx[c] = i
		}

		e.Categories[j] = categories
		e.CategoryToIdx[j] = idx
		e.NOutputs += len(categories)
	}

	if e.State == nil {
		e.State = model.NewStateManager()
	}
	e.State.SetFitted()
	e.State.SetDimensions(nFeatures, len(data))
	return nil
}

// Transform encodes data into an n_samples × NOutputs matrix.
func (e *OneHotEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(data) == 0 {
		return nil, scigoErrors.NewModelError("OneHotEncoder.Transform", "empty data", scigoErrors.ErrEmptyData)
	}

	result := mat.NewDense(len(data), e.NOutputs, nil)
	for i, row := range data {
		if err := e.TransformRowInto(row, result.RawRowView(i)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TransformRowInto writes the encoding of one row into dst, which must hold
// NOutputs zeroed values.
func (e *OneHotEncoder) TransformRowInto(row []string, dst []float64) error {
	if len(row) != e.NFeatures {
		return scigoErrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(row), 1)
	}
	offset := 0
	for j, category := range row {
		if idx, ok := e.CategoryToIdx[j][category]; ok {
			dst[offset+idx] = 1
		}
		offset += len(e.Categories[j])
	}
	return nil
}

// FitTransform fits on data and encodes it.
func (e *OneHotEncoder) FitTransform(data [][]string) (mat.Matrix, error) {
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// GetFeatureNamesOut names the output columns "<input>_<category>". Inputs
// default to x0, x1, ... when inputFeatures is nil or short.
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) []string {
	if !e.IsFitted() {
		return nil
	}

	var out []string
	for i, categories := range e.Categories {
		name := fmt.Sprintf("x%d", i)
		if i < len(inputFeatures) {
			name = inputFeatures[i]
		}
		for _, c := range categories {
			out = append(out, name+"_"+c)
		}
	}
	return out
}
