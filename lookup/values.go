package lookup

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ezoic/intelicar/dataset"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// Value table columns.
const (
	ColumnColor        = "color"
	ColumnInterior     = "interior"
	ColumnTransmission = "transmission"
)

// UniqueValues returns the distinct values of a categorical column in order
// of first appearance.
func UniqueValues(sales []dataset.Sale, column string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sales {
		v := s.Field(column)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// WriteValues writes one value per line.
func WriteValues(w io.Writer, values []string) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		if _, err := bw.WriteString(v + "\n"); err != nil {
			return scigoErrors.Wrap(err, "write values")
		}
	}
	return scigoErrors.Wrap(bw.Flush(), "flush values")
}

// SaveValues writes values to path.
func SaveValues(path string, values []string) error {
	file, err := os.Create(path)
	if err != nil {
		return scigoErrors.Wrapf(err, "create %s", path)
	}
	if err := WriteValues(file, values); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadValues reads one value per line, skipping blank lines and a first line
// equal to column.
func ReadValues(r io.Reader, column string) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		v := strings.TrimSpace(sc.Text())
		if v == "" {
			continue
		}
		if first && v == column {
			first = false
			continue
		}
		first = false
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, scigoErrors.Wrap(err, "read values")
	}
	return out, nil
}

// LoadValues reads the values file at path.
func LoadValues(path, column string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()
	return ReadValues(file, column)
}

// IndexOrDefault returns the position of want in values, or 0.
func IndexOrDefault(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return 0
}
