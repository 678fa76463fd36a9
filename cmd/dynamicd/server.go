package main

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jpl-au/dynamic"
)

// server exposes the application behind a dynamic registry and an admin API
// that reconfigures the registry while the server runs.
type server struct {
	reg       *dynamic.Registry
	logger    *slog.Logger
	adminKey  string
	adminOpen bool

	// mu serializes admin changes so enabling a feature stays idempotent.
	mu sync.Mutex
}

func newServer(o *Options, logger *slog.Logger) *server {
	opts := []dynamic.Option{
		dynamic.WithLogger(logger),
		dynamic.WithTimeout(o.HandlerTimeout),
	}
	if o.ForwardErrors {
		opts = append(opts, dynamic.WithErrorForwarding(nil))
	}
	seed := make([]dynamic.Handler, 0, len(o.Features))
	for _, name := range o.Features {
		if f, ok := features[name]; ok {
			seed = append(seed, f)
		}
	}
	opts = append(opts, dynamic.WithHandlers(seed...))

	return &server{
		reg:       dynamic.New(opts...),
		logger:    logger,
		adminKey:  o.AdminKey,
		adminOpen: o.AdminOpen,
	}
}

// handler returns the root handler. Access logs are written to accessLog.
// The admin API is only mounted when an admin key is configured or it is
// explicitly opened; otherwise its paths reach the application like any other.
func (s *server) handler(accessLog io.Writer) http.Handler {
	app := http.NewServeMux()
	app.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("world"))
	})

	r := mux.NewRouter()
	if s.adminKey != "" || s.adminOpen {
		r.HandleFunc("/-/features", s.admin(s.listFeatures)).Methods(http.MethodGet)
		r.HandleFunc("/-/features", s.admin(s.cleanFeatures)).Methods(http.MethodDelete)
		r.HandleFunc("/-/features/{name}", s.admin(s.enableFeature)).Methods(http.MethodPut)
		r.HandleFunc("/-/features/{name}", s.admin(s.disableFeature)).Methods(http.MethodDelete)
	} else {
		s.logger.Warn("admin API disabled, set DYNAMIC_ADMIN_KEY to enable it")
	}
	r.PathPrefix("/").Handler(s.reg.Handle()(app))

	return handlers.RecoveryHandler()(
		handlers.CombinedLoggingHandler(accessLog,
			handlers.CompressHandler(r),
		),
	)
}

func (s *server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Admin-Key")
		if s.adminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			jsonResponse(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		h(w, r)
	}
}

type featuresResponse struct {
	Enabled   []string `json:"enabled"`
	Available []string `json:"available"`
}

func (s *server) state() featuresResponse {
	resp := featuresResponse{Enabled: []string{}}
	for _, h := range s.reg.Get() {
		if f, ok := h.(*feature); ok {
			resp.Enabled = append(resp.Enabled, f.name)
		}
	}
	for name := range features {
		resp.Available = append(resp.Available, name)
	}
	sort.Strings(resp.Available)
	return resp
}

func (s *server) listFeatures(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.state())
}

func (s *server) enableFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := features[mux.Vars(r)["name"]]
	if !ok {
		jsonResponse(w, http.StatusNotFound, map[string]string{"message": "unknown feature"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.reg.Get() {
		if h == dynamic.Handler(f) {
			jsonResponse(w, http.StatusOK, s.state())
			return
		}
	}
	s.reg.Use(f)
	s.logger.Info("feature enabled", "feature", f.name)
	jsonResponse(w, http.StatusOK, s.state())
}

func (s *server) disableFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := features[mux.Vars(r)["name"]]
	if !ok {
		jsonResponse(w, http.StatusNotFound, map[string]string{"message": "unknown feature"})
		return
	}
	s.mu.Lock()
	s.reg.Unuse(f)
	s.mu.Unlock()
	s.logger.Info("feature disabled", "feature", f.name)
	jsonResponse(w, http.StatusOK, s.state())
}

func (s *server) cleanFeatures(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.reg.Clean()
	s.mu.Unlock()
	s.logger.Info("features cleared")
	jsonResponse(w, http.StatusOK, s.state())
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
