package tabular

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// ColumnKind classifies a column for feature encoding.
type ColumnKind int

const (
	Numeric ColumnKind = iota
	Categorical
)

func (k ColumnKind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Frame is a table of string cells with named columns.
type Frame struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewFrame builds a frame, checking that every row has one cell per column.
func NewFrame(columns []string, rows [][]string) (*Frame, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, scigoErrors.NewDimensionError("NewFrame", len(columns), len(row), i)
		}
	}
	f := &Frame{Columns: columns, Rows: rows}
	f.buildIndex()
	return f, nil
}

func (f *Frame) buildIndex() {
	f.index = make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		f.index[c] = i
	}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.Rows) }

// ColumnIndex returns the position of column name.
func (f *Frame) ColumnIndex(name string) (int, bool) {
	if f.index == nil {
		f.buildIndex()
	}
	i, ok := f.index[name]
	return i, ok
}

// Column returns the cells of column name.
func (f *Frame) Column(name string) ([]string, error) {
	j, ok := f.ColumnIndex(name)
	if !ok {
		return nil, missingColumn(name)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Float parses column name as numbers.
func (f *Frame) Float(name string) ([]float64, error) {
	cells, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, scigoErrors.Wrapf(scigoErrors.ErrInvalidValue, "column %q row %d: %q is not a number", name, i, c)
		}
		out[i] = v
	}
	return out, nil
}

// Kind reports Numeric when every cell of the column parses as a float.
// Empty frames report Categorical.
func (f *Frame) Kind(name string) ColumnKind {
	cells, err := f.Column(name)
	if err != nil || len(cells) == 0 {
		return Categorical
	}
	for _, c := range cells {
		if _, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err != nil {
			return Categorical
		}
	}
	return Numeric
}

// Take returns a frame holding the given rows. Rows are shared, not copied.
func (f *Frame) Take(indices []int) *Frame {
	rows := make([][]string, len(indices))
	for k, i := range indices {
		rows[k] = f.Rows[i]
	}
	return &Frame{Columns: f.Columns, Rows: rows, index: f.index}
}

// WithColumn returns a copy of f whose column name holds cells. Other rows
// are shared with f.
func (f *Frame) WithColumn(name string, cells []string) (*Frame, error) {
	j, ok := f.ColumnIndex(name)
	if !ok {
		return nil, missingColumn(name)
	}
	if len(cells) != len(f.Rows) {
		return nil, scigoErrors.NewDimensionError("Frame.WithColumn", len(f.Rows), len(cells), 0)
	}
	rows := make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		cp := append([]string(nil), row...)
		cp[j] = cells[i]
		rows[i] = cp
	}
	return &Frame{Columns: f.Columns, Rows: rows, index: f.index}, nil
}

// ReadCSV parses a headed CSV into a frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if scigoErrors.Is(err, io.EOF) {
			return nil, scigoErrors.NewModelError("ReadCSV", "missing header", scigoErrors.ErrEmptyData)
		}
		return nil, scigoErrors.Wrap(err, "read csv header")
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, scigoErrors.Wrap(err, "read csv rows")
	}
	return NewFrame(header, rows)
}

// ReadCSVFile reads a headed CSV file.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()
	return ReadCSV(file)
}

// WriteCSV writes the header followed by every row.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return scigoErrors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return scigoErrors.Wrap(err, "write csv rows")
	}
	return nil
}

// WriteCSVFile writes the frame to path, creating or truncating it.
func (f *Frame) WriteCSVFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return scigoErrors.Wrapf(err, "create %s", path)
	}
	if err := f.WriteCSV(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// SplitIndices shuffles [0, n) with seed and returns the first
// n - ceil(n*frac) positions as train and the rest as holdout.
func SplitIndices(n int, frac float64, seed uint64) (train, holdout []int) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

	nHold := int(math.Ceil(float64(n) * frac))
	if nHold > n {
		nHold = n
	}
	if nHold < 0 {
		nHold = 0
	}
	return perm[:n-nHold], perm[n-nHold:]
}

// KFoldIndices shuffles [0, n) with seed and deals the positions into k
// folds of near-equal size. k is capped at n; fewer than two folds yields a
// single fold holding every position.
func KFoldIndices(n, k int, seed uint64) [][]int {
	perm, _ := SplitIndices(n, 0, seed)
	if k > n {
		k = n
	}
	if k < 2 {
		return [][]int{perm}
	}
	folds := make([][]int, k)
	for i, idx := range perm {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

func missingColumn(name string) error {
	return scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "column %q", name)
}
