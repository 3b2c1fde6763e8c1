package web

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ezoic/intelicar/modelstore"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	// ModelDir names a model directory; empty selects the latest.
	ModelDir string `json:"model_dir,omitempty"`
	CarInput
}

// PredictResponse is the reply of POST /api/predict.
type PredictResponse struct {
	ModelDir string   `json:"model_dir"`
	Price    float64  `json:"price"`
	Input    CarInput `json:"input"`
	ImageURL string   `json:"image_url,omitempty"`
}

// ModelDetail is the reply of GET /api/models/{name}.
type ModelDetail struct {
	modelstore.Summary
	Info any `json:"info"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", log.ErrorKey, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"loaded_models": s.cache.Len(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	sums, err := modelstore.Summaries(s.opts.ModelsDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sums == nil {
		sums = []modelstore.Summary{}
	}
	s.writeJSON(w, http.StatusOK, sums)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	dir, err := modelstore.Resolve(s.opts.ModelsDir, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.cache.Get(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	detail := ModelDetail{
		Summary: modelstore.Summary{Name: name, Path: dir},
		Info:    p.Info(),
	}
	if metrics, err := modelstore.ReadMetrics(dir); err == nil {
		detail.Metrics = metrics
	} else {
		detail.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleMapping(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Mapping)
}

func (s *Server) handleMakes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Mapping.Makes())
}

func (s *Server) handleModelsOfMake(w http.ResponseWriter, r *http.Request) {
	mk := mux.Vars(r)["make"]
	if _, ok := s.opts.Mapping[mk]; !ok {
		s.writeError(w, scigoErrors.Wrapf(scigoErrors.ErrNotFound, "make %q", mk))
		return
	}
	s.writeJSON(w, http.StatusOK, s.opts.Mapping.Models(mk))
}

func (s *Server) handleTrims(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mk, model := vars["make"], vars["model"]
	if _, ok := s.opts.Mapping[mk][model]; !ok {
		s.writeError(w, scigoErrors.Wrapf(scigoErrors.ErrNotFound, "model %q of make %q", model, mk))
		return
	}
	s.writeJSON(w, http.StatusOK, s.opts.Mapping.Trims(mk, model))
}

func (s *Server) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, scigoErrors.NewValidationError("body", "must be a JSON car description", err.Error()))
		return
	}
	in := req.CarInput
	in.Clamp()
	if err := in.Validate(); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.checkKnown(in); err != nil {
		s.writeError(w, err)
		return
	}

	price, err := s.predict(req.ModelDir, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dir, _ := modelstore.Resolve(s.opts.ModelsDir, req.ModelDir)
	resp := PredictResponse{ModelDir: filepath.Base(dir), Price: price, Input: in}
	if s.opts.Images != nil {
		if u, ok := s.opts.Images.FetchImageURL(r.Context(), in.Make, in.Model, in.Year); ok {
			resp.ImageURL = u
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.opts.Images == nil {
		s.writeError(w, scigoErrors.Wrap(scigoErrors.ErrNotFound, "image lookup disabled"))
		return
	}
	q := r.URL.Query()
	mk, model := strings.TrimSpace(q.Get("make")), strings.TrimSpace(q.Get("model"))
	if mk == "" || model == "" {
		s.writeError(w, scigoErrors.NewValidationError("make/model", "must not be empty", mk+"/"+model))
		return
	}
	year := atoiDefault(q.Get("year"), DefaultYear)
	u, ok := s.opts.Images.FetchImageURL(r.Context(), mk, model, year)
	if !ok {
		s.writeError(w, scigoErrors.Wrap(scigoErrors.ErrNotFound, "no image"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"image_url": u})
}
