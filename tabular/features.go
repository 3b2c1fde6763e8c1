package tabular

import (
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/preprocessing"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// DefaultTargetFolds is the number of folds used for out-of-fold target
// encoding of training rows.
const DefaultTargetFolds = 5

// DefaultOneHotMaxCategories is the largest cardinality that is one-hot
// encoded. Wider categorical columns are target encoded.
const DefaultOneHotMaxCategories = 16

// Encoding names how a feature column is turned into numbers.
type Encoding string

const (
	EncodingStandard Encoding = "standard"
	EncodingOneHot   Encoding = "onehot"
	EncodingTarget   Encoding = "target"
)

// ColumnPlan records how one input column is encoded.
type ColumnPlan struct {
	Name     string
	Kind     ColumnKind
	Encoding Encoding
}

// FeatureEncoder turns a Frame into a dense design matrix. Output columns are
// laid out as standardized numerics, then one-hot indicators, then target
// encodings.
type FeatureEncoder struct {
	Label               string
	OneHotMaxCategories int
	Plan                []ColumnPlan

	NumericColumns []string
	OneHotColumns  []string
	TargetColumns  []string

	Scaler *preprocessing.StandardScaler
	OneHot *preprocessing.OneHotEncoder
	Target *preprocessing.TargetEncoder

	NOutputs int
}

// NewFeatureEncoder creates an encoder for every column except label.
func NewFeatureEncoder(label string, oneHotMaxCategories int) *FeatureEncoder {
	if oneHotMaxCategories <= 0 {
		oneHotMaxCategories = DefaultOneHotMaxCategories
	}
	return &FeatureEncoder{Label: label, OneHotMaxCategories: oneHotMaxCategories}
}

// FeatureColumns returns the input columns in frame order.
func (e *FeatureEncoder) FeatureColumns() []string {
	out := make([]string, len(e.Plan))
	for i, p := range e.Plan {
		out[i] = p.Name
	}
	return out
}

// Fit infers column kinds from f, chooses encodings and fits the
// underlying preprocessors. The label column must be numeric.
func (e *FeatureEncoder) Fit(f *Frame) error {
	if f.NumRows() == 0 {
		return scigoErrors.NewModelError("FeatureEncoder.Fit", "empty frame", scigoErrors.ErrEmptyData)
	}
	y, err := f.Float(e.Label)
	if err != nil {
		return scigoErrors.Wrap(err, "label column")
	}

	e.Plan = e.Plan[:0]
	e.NumericColumns, e.OneHotColumns, e.TargetColumns = nil, nil, nil
	for _, name := range f.Columns {
		if name == e.Label {
			continue
		}
		plan := ColumnPlan{Name: name, Kind: f.Kind(name)}
		switch {
		case plan.Kind == Numeric:
			plan.Encoding = EncodingStandard
			e.NumericColumns = append(e.NumericColumns, name)
		case cardinality(f, name) <= e.OneHotMaxCategories:
			plan.Encoding = EncodingOneHot
			e.OneHotColumns = append(e.OneHotColumns, name)
		default:
			plan.Encoding = EncodingTarget
			e.TargetColumns = append(e.TargetColumns, name)
		}
		e.Plan = append(e.Plan, plan)
	}
	if len(e.Plan) == 0 {
		return scigoErrors.NewValueError("FeatureEncoder.Fit", "no feature columns besides the label")
	}

	e.Scaler, e.OneHot, e.Target = nil, nil, nil
	e.NOutputs = 0

	if len(e.NumericColumns) > 0 {
		X, err := numericMatrix(f, e.NumericColumns)
		if err != nil {
			return err
		}
		e.Scaler = preprocessing.NewStandardScalerDefault()
		if err := e.Scaler.Fit(X); err != nil {
			return scigoErrors.Wrap(err, "fit scaler")
		}
		e.NOutputs += len(e.NumericColumns)
	}
	if len(e.OneHotColumns) > 0 {
		e.OneHot = preprocessing.NewOneHotEncoder()
		if err := e.OneHot.Fit(stringRows(f, e.OneHotColumns)); err != nil {
			return scigoErrors.Wrap(err, "fit one-hot encoder")
		}
		e.NOutputs += e.OneHot.NOutputs
	}
	if len(e.TargetColumns) > 0 {
		e.Target = preprocessing.NewTargetEncoder(preprocessing.DefaultSmoothing)
		if err := e.Target.Fit(stringRows(f, e.TargetColumns), y); err != nil {
			return scigoErrors.Wrap(err, "fit target encoder")
		}
		e.NOutputs += len(e.TargetColumns)
	}
	return nil
}

// Transform encodes f. The label column is ignored if present; every
// feature column must be.
func (e *FeatureEncoder) Transform(f *Frame) (*mat.Dense, error) {
	if e.NOutputs == 0 {
		return nil, scigoErrors.NewNotFittedError("FeatureEncoder", "Transform")
	}
	if f.NumRows() == 0 {
		return nil, scigoErrors.NewModelError("FeatureEncoder.Transform", "empty frame", scigoErrors.ErrEmptyData)
	}

	numIdx, err := columnPositions(f, e.NumericColumns)
	if err != nil {
		return nil, err
	}
	ohIdx, err := columnPositions(f, e.OneHotColumns)
	if err != nil {
		return nil, err
	}
	tgIdx, err := columnPositions(f, e.TargetColumns)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(f.NumRows(), e.NOutputs, nil)
	numRow := make([]float64, len(numIdx))
	ohRow := make([]string, len(ohIdx))
	tgRow := make([]string, len(tgIdx))

	for i, row := range f.Rows {
		dst := out.RawRowView(i)
		offset := 0

		if e.Scaler != nil {
			for k, j := range numIdx {
				v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
				if err != nil {
					return nil, scigoErrors.Wrapf(scigoErrors.ErrInvalidValue,
						"column %q row %d: %q is not a number", e.NumericColumns[k], i, row[j])
				}
				numRow[k] = v
			}
			if err := e.Scaler.TransformRowInto(numRow, dst[offset:]); err != nil {
				return nil, err
			}
			offset += len(numIdx)
		}
		if e.OneHot != nil {
			for k, j := range ohIdx {
				ohRow[k] = row[j]
			}
			if err := e.OneHot.TransformRowInto(ohRow, dst[offset:]); err != nil {
				return nil, err
			}
			offset += e.OneHot.NOutputs
		}
		if e.Target != nil {
			for k, j := range tgIdx {
				tgRow[k] = row[j]
			}
			if err := e.Target.TransformRowInto(tgRow, dst[offset:]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// FitTransform fits the encoder on f and returns the encoded training
// matrix. Target-encoded columns are filled out of fold over folds shuffled
// with seed, so a row never sees its own label; Transform afterwards uses the
// encodings fitted on all of f.
func (e *FeatureEncoder) FitTransform(f *Frame, folds int, seed uint64) (*mat.Dense, error) {
	if err := e.Fit(f); err != nil {
		return nil, err
	}
	X, err := e.Transform(f)
	if err != nil {
		return nil, err
	}
	if e.Target == nil {
		return X, nil
	}

	y, err := f.Float(e.Label)
	if err != nil {
		return nil, err
	}
	oof, err := e.Target.FitTransformFolds(stringRows(f, e.TargetColumns), y, KFoldIndices(f.NumRows(), folds, seed))
	if err != nil {
		return nil, scigoErrors.Wrap(err, "out-of-fold target encoding")
	}
	offset := e.NOutputs - len(e.TargetColumns)
	for i := 0; i < f.NumRows(); i++ {
		copy(X.RawRowView(i)[offset:], oof.RawRowView(i))
	}
	return X, nil
}

// FeatureNames names the output columns of Transform.
func (e *FeatureEncoder) FeatureNames() []string {
	names := append([]string(nil), e.NumericColumns...)
	if e.OneHot != nil {
		names = append(names, e.OneHot.GetFeatureNamesOut(e.OneHotColumns)...)
	}
	return append(names, e.TargetColumns...)
}

func cardinality(f *Frame, name string) int {
	j, _ := f.ColumnIndex(name)
	seen := make(map[string]struct{})
	for _, row := range f.Rows {
		seen[row[j]] = struct{}{}
	}
	return len(seen)
}

func columnPositions(f *Frame, names []string) ([]int, error) {
	out := make([]int, len(names))
	for k, name := range names {
		j, ok := f.ColumnIndex(name)
		if !ok {
			return nil, missingColumn(name)
		}
		out[k] = j
	}
	return out, nil
}

func numericMatrix(f *Frame, names []string) (*mat.Dense, error) {
	X := mat.NewDense(f.NumRows(), len(names), nil)
	for k, name := range names {
		col, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		X.SetCol(k, col)
	}
	return X, nil
}

func stringRows(f *Frame, names []string) [][]string {
	idx, _ := columnPositions(f, names)
	rows := make([][]string, f.NumRows())
	for i, row := range f.Rows {
		r := make([]string, len(idx))
		for k, j := range idx {
			r[k] = row[j]
		}
		rows[i] = r
	}
	return rows
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
