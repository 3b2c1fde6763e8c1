// Package web serves the intelicar price form, the intake form and a JSON
// API over the trained model directories.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ezoic/intelicar/carimage"
	"github.com/ezoic/intelicar/internal/config"
	"github.com/ezoic/intelicar/lookup"
	"github.com/ezoic/intelicar/modelstore"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures a Server.
type Options struct {
	ModelsDir string
	Mapping   lookup.Mapping
	Colors    []string
	Interiors []string
	// Images enables the car photo lookup when non-nil.
	Images *carimage.Client
	Now    func() time.Time
}

// LoadOptions reads the lookup tables named by cfg.
func LoadOptions(cfg *config.Config) (Options, error) {
	paths := cfg.CatalogPaths()
	m, err := lookup.LoadJSON(paths["car_mapping"])
	if err != nil {
		return Options{}, err
	}
	colors, err := lookup.LoadValues(paths["colors"], lookup.ColumnColor)
	if err != nil {
		return Options{}, err
	}
	interiors, err := lookup.LoadValues(paths["interior"], lookup.ColumnInterior)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		ModelsDir: cfg.ModelsDir(),
		Mapping:   m,
		Colors:    colors,
		Interiors: interiors,
	}
	if cfg.Server.EnableImages {
		opts.Images = carimage.NewClient()
	}
	return opts, nil
}

// Server holds the loaded lookups and predictors.
type Server struct {
	opts   Options
	cache  *modelstore.Cache
	tmpl   *template.Template
	logger log.Logger
}

// New creates a server and loads the latest predictor if there is one.
func New(opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mapping == nil {
		opts.Mapping = lookup.Mapping{}
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"selected": func(a, b string) bool { return a == b },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, scigoErrors.Wrap(err, "parse templates")
	}

	s := &Server{
		opts:   opts,
		cache:  modelstore.NewCache(opts.ModelsDir),
		tmpl:   tmpl,
		logger: log.GetLoggerWithName("web"),
	}
	if _, err := s.cache.Get(""); err != nil {
		s.logger.Warn("No predictor loaded at start", log.ErrorKey, err)
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredictForm).Methods(http.MethodPost)
	r.HandleFunc("/intake", s.handleIntake).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{name}", s.handleModelInfo).Methods(http.MethodGet)
	api.HandleFunc("/mapping", s.handleMapping).Methods(http.MethodGet)
	api.HandleFunc("/makes", s.handleMakes).Methods(http.MethodGet)
	api.HandleFunc("/makes/{make}/models", s.handleModelsOfMake).Methods(http.MethodGet)
	api.HandleFunc("/makes/{make}/models/{model}/trims", s.handleTrims).Methods(http.MethodGet)
	api.HandleFunc("/predict", s.handlePredictAPI).Methods(http.MethodPost)
	api.HandleFunc("/image", s.handleImage).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.Handler(),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("Server started", "addr", cfg.Addr, "models_dir", s.opts.ModelsDir)

	select {
	case err := <-errc:
		return scigoErrors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return scigoErrors.Wrap(err, "shutdown")
	}
	s.logger.Info("Server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request",
			"method", r.Method,
			log.PathKey, r.URL.Path,
			"status", rec.status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var verr *scigoErrors.ValidationError
	switch {
	case scigoErrors.Is(err, scigoErrors.ErrNotFound), scigoErrors.Is(err, scigoErrors.ErrNoModels):
		return http.StatusNotFound
	case scigoErrors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
