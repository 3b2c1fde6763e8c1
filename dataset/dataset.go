// Package dataset reads the raw used-car sales export and turns it into the
// cleaned table the predictor trains on.
//
//	records, err := dataset.ReadCSVFile("data/01_raw/car_prices.csv")
//	sales, stats := dataset.Clean(records)
//	train, test := dataset.TrainTestSplit(sales, 0.2, 42)
package dataset

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Label is the target column of the cleaned table.
const Label = "sellingprice"

// Columns is the header of the cleaned table, label last.
var Columns = []string{
	"year", "make", "model", "trim", "transmission", "condition", "odometer",
	"color", "interior", "saleyear", "years_on_sale", Label,
}

// Record is one row of the raw export. Missing lists the columns whose cell
// was empty or, for numeric columns, not a number.
type Record struct {
	Year         int
	Make         string
	Model        string
	Trim         string
	Body         string
	Transmission string
	VIN          string
	State        string
	Condition    float64
	Odometer     float64
	Color        string
	Interior     string
	Seller       string
	MMR          float64
	SellingPrice float64
	SaleDate     string

	Missing []string
}

// Complete reports whether every field of r was present.
func (r Record) Complete() bool { return len(r.Missing) == 0 }

// Sale is a cleaned row.
type Sale struct {
	Year         int
	Make         string
	Model        string
	Trim         string
	Transmission string
	Condition    float64
	Odometer     float64
	Color        string
	Interior     string
	SaleYear     int
	YearsOnSale  int
	SellingPrice float64
}

// Row formats s in Columns order.
func (s Sale) Row() []string {
	return []string{
		strconv.Itoa(s.Year), s.Make, s.Model, s.Trim, s.Transmission,
		formatFloat(s.Condition), formatFloat(s.Odometer),
		s.Color, s.Interior,
		strconv.Itoa(s.SaleYear), strconv.Itoa(s.YearsOnSale),
		formatFloat(s.SellingPrice),
	}
}

// Field returns the value of a categorical column, or "" for other names.
func (s Sale) Field(column string) string {
	switch column {
	case "make":
		return s.Make
	case "model":
		return s.Model
	case "trim":
		return s.Trim
	case "transmission":
		return s.Transmission
	case "color":
		return s.Color
	case "interior":
		return s.Interior
	}
	return ""
}

var saleYearPattern = regexp.MustCompile(`[^0-9].* \d\d (\d{4}).*`)

// ParseSaleYear extracts the year from a sale date such as
// "Tue Dec 16 2014 12:30:00 GMT-0800 (PST)".
func ParseSaleYear(s string) (int, bool) {
	m := saleYearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// CleanStats counts the rows seen by Clean.
type CleanStats struct {
	Read    int `json:"read"`
	Dropped int `json:"dropped"`
	Kept    int `json:"kept"`
}

// Clean drops incomplete records and records whose sale date carries no
// year, derives the sale year and years on sale, and drops the identifying
// and auction columns.
func Clean(records []Record) ([]Sale, CleanStats) {
	stats := CleanStats{Read: len(records)}
	sales := make([]Sale, 0, len(records))
	for _, r := range records {
		if !r.Complete() {
			continue
		}
		// A sale date without a year is dropped here instead of being kept
		// with an empty sale year: years_on_sale could not be derived and
		// the predictor requires every numeric cell.
		saleYear, ok := ParseSaleYear(r.SaleDate)
		if !ok {
			continue
		}
		sales = append(sales, Sale{
			Year:         r.Year,
			Make:         r.Make,
			Model:        r.Model,
			Trim:         r.Trim,
			Transmission: r.Transmission,
			Condition:    r.Condition,
			Odometer:     r.Odometer,
			Color:        r.Color,
			Interior:     r.Interior,
			SaleYear:     saleYear,
			YearsOnSale:  saleYear - r.Year,
			SellingPrice: r.SellingPrice,
		})
	}
	stats.Kept = len(sales)
	stats.Dropped = stats.Read - stats.Kept
	return sales, stats
}

// ModelCount is the number of sales of one model.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// ModelCounts counts sales per model, most frequent first.
func ModelCounts(sales []Sale) []ModelCount {
	counts := make(map[string]int)
	for _, s := range sales {
		counts[s.Model]++
	}
	out := make([]ModelCount, 0, len(counts))
	for m, c := range counts {
		out = append(out, ModelCount{Model: m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}
