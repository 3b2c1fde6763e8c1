package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

// requiredColumns must appear in the raw header. The remaining raw columns
// are optional and only count toward completeness when present.
var requiredColumns = []string{
	"year", "make", "model", "trim", "transmission", "condition", "odometer",
	"color", "interior", "sellingprice", "saledate",
}

// ReadCSV parses the raw export. Columns are located by header name.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if scigoErrors.Is(err, io.EOF) {
			return nil, scigoErrors.NewModelError("dataset.ReadCSV", "missing header", scigoErrors.ErrEmptyData)
		}
		return nil, scigoErrors.Wrap(err, "read csv header")
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := pos[name]; !ok {
			return nil, scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "column %q", name)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if scigoErrors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "read csv line %d", line)
		}
		records = append(records, parseRecord(pos, row))
	}
	log.GetLoggerWithName("dataset").Debug("Read raw records", log.SamplesKey, len(records))
	return records, nil
}

// ReadCSVFile reads the raw export at path.
func ReadCSVFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()
	return ReadCSV(file)
}

func parseRecord(pos map[string]int, row []string) Record {
	var r Record
	cell := func(name string) (string, bool) {
		j, ok := pos[name]
		if !ok {
			return "", true
		}
		if j >= len(row) {
			r.Missing = append(r.Missing, name)
			return "", false
		}
		v := strings.TrimSpace(row[j])
		if v == "" {
			r.Missing = append(r.Missing, name)
			return "", false
		}
		return v, true
	}
	str := func(name string) string {
		v, _ := cell(name)
		return v
	}
	num := func(name string) float64 {
		if _, present := pos[name]; !present {
			return 0
		}
		v, ok := cell(name)
		if !ok {
			return 0
		}
		f, ok := parseFloat(v)
		if !ok {
			r.Missing = append(r.Missing, name)
		}
		return f
	}

	r.Year = int(num("year"))
	r.Make = str("make")
	r.Model = str("model")
	r.Trim = str("trim")
	r.Body = str("body")
	r.Transmission = str("transmission")
	r.VIN = str("vin")
	r.State = str("state")
	r.Condition = num("condition")
	r.Odometer = num("odometer")
	r.Color = str("color")
	r.Interior = str("interior")
	r.Seller = str("seller")
	r.MMR = num("mmr")
	r.SellingPrice = num("sellingprice")
	r.SaleDate = str("saledate")
	return r
}

// WriteCSV writes sales with the Columns header.
func WriteCSV(w io.Writer, sales []Sale) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return scigoErrors.Wrap(err, "write csv header")
	}
	for _, s := range sales {
		if err := cw.Write(s.Row()); err != nil {
			return scigoErrors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return scigoErrors.Wrap(cw.Error(), "flush csv")
}

// WriteCSVFile writes sales to path, creating or truncating it.
func WriteCSVFile(path string, sales []Sale) error {
	file, err := os.Create(path)
	if err != nil {
		return scigoErrors.Wrapf(err, "create %s", path)
	}
	if err := WriteCSV(file, sales); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadSalesCSV reads a table written by WriteCSV.
func ReadSalesCSV(r io.Reader) ([]Sale, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if scigoErrors.Is(err, io.EOF) {
			return nil, scigoErrors.NewModelError("dataset.ReadSalesCSV", "missing header", scigoErrors.ErrEmptyData)
		}
		return nil, scigoErrors.Wrap(err, "read csv header")
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[name] = i
	}
	for _, name := range Columns {
		if _, ok := pos[name]; !ok {
			return nil, scigoErrors.Wrapf(scigoErrors.ErrMissingColumn, "column %q", name)
		}
	}

	var sales []Sale
	line := 1
	for {
		row, err := cr.Read()
		if scigoErrors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "read csv line %d", line)
		}
		s, err := parseSale(pos, row)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "line %d", line)
		}
		sales = append(sales, s)
	}
	return sales, nil
}

// ReadSalesCSVFile reads a table written by WriteCSVFile.
func ReadSalesCSVFile(path string) ([]Sale, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()
	return ReadSalesCSV(file)
}

func parseSale(pos map[string]int, row []string) (Sale, error) {
	var err error
	num := func(name string) float64 {
		if err != nil {
			return 0
		}
		v, ok := parseFloat(row[pos[name]])
		if !ok {
			err = scigoErrors.Wrapf(scigoErrors.ErrInvalidValue, "column %q: %q is not a number", name, row[pos[name]])
		}
		return v
	}
	integer := func(name string) int {
		if err != nil {
			return 0
		}
		v, convErr := strconv.Atoi(strings.TrimSpace(row[pos[name]]))
		if convErr != nil {
			// tolerate "2014.0" written by other tools
			f, ok := parseFloat(row[pos[name]])
			if !ok {
				err = scigoErrors.Wrapf(scigoErrors.ErrInvalidValue, "column %q: %q is not an integer", name, row[pos[name]])
			}
			return int(f)
		}
		return v
	}

	s := Sale{
		Year:         integer("year"),
		Make:         row[pos["make"]],
		Model:        row[pos["model"]],
		Trim:         row[pos["trim"]],
		Transmission: row[pos["transmission"]],
		Condition:    num("condition"),
		Odometer:     num("odometer"),
		Color:        row[pos["color"]],
		Interior:     row[pos["interior"]],
		SaleYear:     integer("saleyear"),
		YearsOnSale:  integer("years_on_sale"),
		SellingPrice: num(Label),
	}
	return s, err
}
