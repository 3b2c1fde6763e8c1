// Package lookup builds the categorical tables behind the price form: the
// make → model → trims mapping and the distinct colors, interiors and
// transmissions.
package lookup

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/ezoic/intelicar/dataset"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// Mapping holds the trims observed for every make and model.
type Mapping map[string]map[string][]string

// BuildMapping collects the distinct trims per make and model. Trims are
// sorted.
func BuildMapping(sales []dataset.Sale) Mapping {
	seen := make(map[string]map[string]map[string]struct{})
	for _, s := range sales {
		models, ok := seen[s.Make]
		if !ok {
			models = make(map[string]map[string]struct{})
			seen[s.Make] = models
		}
		trims, ok := models[s.Model]
		if !ok {
			trims = make(map[string]struct{})
			models[s.Model] = trims
		}
		trims[s.Trim] = struct{}{}
	}

	m := make(Mapping, len(seen))
	for mk, models := range seen {
		m[mk] = make(map[string][]string, len(models))
		for model, trims := range models {
			list := make([]string, 0, len(trims))
			for trim := range trims {
				list = append(list, trim)
			}
			sort.Strings(list)
			m[mk][model] = list
		}
	}
	return m
}

// Makes lists every make.
func (m Mapping) Makes() []string {
	return sortedKeys(m)
}

// Models lists the models of make mk, or nothing for an unknown make.
func (m Mapping) Models(mk string) []string {
	return sortedKeys(m[mk])
}

// Trims lists the trims of make mk and model.
func (m Mapping) Trims(mk, model string) []string {
	trims := m[mk][model]
	out := append([]string{}, trims...)
	sort.Strings(out)
	return out
}

// WriteJSON encodes m indented by four spaces. Map keys come out sorted.
func (m Mapping) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return scigoErrors.Wrap(enc.Encode(m), "encode mapping")
}

// SaveJSON writes m to path.
func (m Mapping) SaveJSON(path string) error {
	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		return err
	}
	return scigoErrors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write %s", path)
}

// ReadJSON decodes a mapping written by WriteJSON.
func ReadJSON(r io.Reader) (Mapping, error) {
	var m Mapping
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, scigoErrors.Wrap(err, "decode mapping")
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// LoadJSON reads the mapping at path.
func LoadJSON(path string) (Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()
	return ReadJSON(file)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
