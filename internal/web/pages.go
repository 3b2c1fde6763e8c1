package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/ezoic/intelicar/lookup"
	"github.com/ezoic/intelicar/modelstore"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tabular"
)

// indexPage is the data of the price form template.
type indexPage struct {
	Models        []string
	SelectedModel string
	MetricsJSON   string
	BestModel     *tabular.ModelInfo
	BestInfoJSON  string

	Input         CarInput
	Makes         []string
	CarModels     []string
	Trims         []string
	Transmissions []string
	Colors        []string
	Interiors     []string
	MinYear       int
	MaxYear       int
	MinCondition  int
	MaxCondition  int

	Price    string
	ImageURL string
	Error    string
}

// selectInput fills the dependent dropdowns and picks a valid value in each.
// It serves the GET re-render only; submissions are checked by checkKnown.
func (s *Server) selectInput(in *CarInput) (makes, models, trims []string) {
	m := s.opts.Mapping
	makes = m.Makes()
	in.Make = pick(makes, in.Make)
	models = m.Models(in.Make)
	in.Model = pick(models, in.Model)
	trims = m.Trims(in.Make, in.Model)
	in.Trim = pick(trims, in.Trim)
	in.Transmission = pick(Transmissions, in.Transmission)
	in.Color = pickDefault(s.opts.Colors, in.Color, DefaultColor)
	in.Interior = pickDefault(s.opts.Interiors, in.Interior, DefaultInterior)
	return makes, models, trims
}

func pick(values []string, want string) string {
	if want == "" && len(values) > 0 {
		return values[0]
	}
	for _, v := range values {
		if v == want {
			return v
		}
	}
	if len(values) > 0 {
		return values[0]
	}
	return want
}

func pickDefault(values []string, want, def string) string {
	if want == "" {
		want = def
	}
	if len(values) == 0 {
		return want
	}
	if i := lookup.IndexOrDefault(values, want); values[i] == want {
		return want
	}
	return values[lookup.IndexOrDefault(values, def)]
}

func (s *Server) newIndexPage(query url.Values, in CarInput) *indexPage {
	page := &indexPage{
		SelectedModel: query.Get("model"),
		Transmissions: Transmissions,
		Colors:        s.opts.Colors,
		Interiors:     s.opts.Interiors,
		MinYear:       MinYear,
		MaxYear:       MaxYear,
		MinCondition:  MinCondition,
		MaxCondition:  MaxCondition,
	}
	page.Makes, page.CarModels, page.Trims = s.selectInput(&in)
	page.Input = in

	if names, err := modelstore.List(s.opts.ModelsDir); err == nil {
		page.Models = names
	}
	dir, err := modelstore.Resolve(s.opts.ModelsDir, page.SelectedModel)
	if err != nil {
		page.Error = "No trained model available: " + err.Error()
		return page
	}
	if page.SelectedModel == "" {
		page.SelectedModel = filepath.Base(dir)
	}
	if metrics, err := modelstore.ReadMetrics(dir); err == nil {
		page.MetricsJSON = indentJSON(metrics)
	}
	if p, err := s.cache.Get(page.SelectedModel); err == nil {
		if mi, ok := p.Info().BestModelInfo(); ok {
			page.BestModel = &mi
			page.BestInfoJSON = indentJSON(mi)
		}
	}
	return page
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in, err := parseCarForm(q)
	page := s.newIndexPage(q, in)
	if err != nil {
		page.Error = err.Error()
	}
	s.render(w, http.StatusOK, "index.html", page)
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in, err := parseCarForm(r.PostForm)
	if err == nil {
		if err = in.Validate(); err == nil {
			err = s.checkKnown(in)
		}
	}
	page := s.newIndexPage(r.Form, in)
	if err != nil {
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, "index.html", page)
		return
	}

	price, err := s.predict(page.SelectedModel, in)
	if err != nil {
		page.Error = err.Error()
		s.render(w, statusFor(err), "index.html", page)
		return
	}
	page.Price = FormatPrice(price)
	if s.opts.Images != nil {
		if u, ok := s.opts.Images.FetchImageURL(r.Context(), in.Make, in.Model, in.Year); ok {
			page.ImageURL = u
		}
	}
	s.render(w, http.StatusOK, "index.html", page)
}

// predict prices in with the named model directory ("" is the latest).
func (s *Server) predict(model string, in CarInput) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	p, err := s.cache.Get(model)
	if err != nil {
		return 0, err
	}
	f, err := in.Frame(s.opts.Now())
	if err != nil {
		return 0, err
	}
	preds, err := p.Predict(f)
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}

// intakePage is the data of the intake form template.
type intakePage struct {
	Submitted bool
	Years     []int
	Fuels     []string
	Bodies    []string
	Gearboxes []string
}

var (
	intakeFuels     = []string{"petrol", "diesel", "hybrid", "electric", "lpg"}
	intakeBodies    = []string{"sedan", "hatchback", "wagon", "suv", "coupe", "convertible", "van", "pickup"}
	intakeGearboxes = []string{"manual", "automatic"}
)

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	page := &intakePage{
		Fuels:     intakeFuels,
		Bodies:    intakeBodies,
		Gearboxes: intakeGearboxes,
	}
	for y := MaxYear; y >= MinYear; y-- {
		page.Years = append(page.Years, y)
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		page.Submitted = true
		s.logger.Info("Intake form submitted",
			"make", r.PostForm.Get("make"),
			"model", r.PostForm.Get("model"),
			"year", r.PostForm.Get("year"),
		)
	}
	s.render(w, http.StatusOK, "intake.html", page)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to render template", log.PathKey, name, log.ErrorKey, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
