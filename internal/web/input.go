package web

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ezoic/intelicar/dataset"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tabular"
)

// Form limits and defaults.
const (
	MinYear          = 1900
	MaxYear          = 2024
	DefaultYear      = 2012
	MinCondition     = 1
	MaxCondition     = 50
	DefaultCondition = 20
	DefaultOdometer  = 100000
	DefaultColor     = "black"
	DefaultInterior  = "white"
)

// Transmissions are the choices of the transmission field.
var Transmissions = []string{"automatic", "manual"}

// CarInput is one car to price.
type CarInput struct {
	Year         int    `json:"year"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Trim         string `json:"trim"`
	Transmission string `json:"transmission"`
	Condition    int    `json:"condition"`
	Odometer     int    `json:"odometer"`
	Color        string `json:"color"`
	Interior     string `json:"interior"`
}

// Clamp forces the numeric fields into their allowed ranges.
func (c *CarInput) Clamp() {
	c.Year = clamp(c.Year, MinYear, MaxYear)
	c.Condition = clamp(c.Condition, MinCondition, MaxCondition)
	if c.Odometer < 0 {
		c.Odometer = 0
	}
}

// Validate reports the first empty categorical field.
func (c CarInput) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"make", c.Make}, {"model", c.Model}, {"trim", c.Trim},
		{"transmission", c.Transmission}, {"color", c.Color}, {"interior", c.Interior},
	} {
		if strings.TrimSpace(f.value) == "" {
			return scigoErrors.NewValidationError(f.name, "must not be empty", f.value)
		}
	}
	return nil
}

// checkKnown rejects categorical values missing from the lookup tables the
// form offers. A price is only quoted for a car the tables describe.
func (s *Server) checkKnown(in CarInput) error {
	m := s.opts.Mapping
	if _, ok := m[in.Make]; !ok {
		return scigoErrors.NewValidationError("make", "unknown make", in.Make)
	}
	if _, ok := m[in.Make][in.Model]; !ok {
		return scigoErrors.NewValidationError("model", "unknown model for make "+in.Make, in.Model)
	}
	if !slices.Contains(m[in.Make][in.Model], in.Trim) {
		return scigoErrors.NewValidationError("trim", "unknown trim for "+in.Make+" "+in.Model, in.Trim)
	}
	for _, f := range []struct {
		name, value string
		allowed     []string
	}{
		{"transmission", in.Transmission, Transmissions},
		{"color", in.Color, s.opts.Colors},
		{"interior", in.Interior, s.opts.Interiors},
	} {
		if !slices.Contains(f.allowed, f.value) {
			return scigoErrors.NewValidationError(f.name, "unknown "+f.name, f.value)
		}
	}
	return nil
}

// Frame builds the one-row frame the predictor scores. The sale year is
// the year of now.
func (c CarInput) Frame(now time.Time) (*tabular.Frame, error) {
	saleYear := now.Year()
	row := []string{
		strconv.Itoa(c.Year), c.Make, c.Model, c.Trim, c.Transmission,
		strconv.Itoa(c.Condition), strconv.Itoa(c.Odometer),
		c.Color, c.Interior,
		strconv.Itoa(saleYear), strconv.Itoa(saleYear - c.Year),
	}
	return tabular.NewFrame(dataset.Columns[:len(dataset.Columns)-1], [][]string{row})
}

// parseCarForm reads a price form submission. Missing numeric fields take
// their defaults; malformed ones are an error.
func parseCarForm(form url.Values) (CarInput, error) {
	in := CarInput{
		Make:         form.Get("make"),
		Model:        form.Get("carmodel"),
		Trim:         form.Get("trim"),
		Transmission: form.Get("transmission"),
		Color:        form.Get("color"),
		Interior:     form.Get("interior"),
	}
	var err error
	if in.Year, err = formInt(form, "year", DefaultYear); err != nil {
		return in, err
	}
	if in.Condition, err = formInt(form, "condition", DefaultCondition); err != nil {
		return in, err
	}
	if in.Odometer, err = formInt(form, "odometer", DefaultOdometer); err != nil {
		return in, err
	}
	in.Clamp()
	return in, nil
}

func formInt(form url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(form.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, scigoErrors.NewValidationError(key, "must be a whole number", v)
	}
	return n, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// FormatPrice renders a prediction the way the form shows it.
func FormatPrice(price float64) string {
	return "Predicted Price: $" + strconv.FormatFloat(price, 'f', 2, 64) + " USD"
}
