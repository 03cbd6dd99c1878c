// Package httpapi exposes the artifact service over HTTP.
package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dmvault/internal/artifact"
)

// maxUploadBytes caps the multipart form memory for create requests.
const maxUploadBytes = 512 << 20

// API wires the artifact service into HTTP handlers.
type API struct {
	svc    *artifact.Service
	logger *log.Logger
}

// New initialises the API layer.
func New(svc *artifact.Service, logger *log.Logger) (*API, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &API{svc: svc, logger: logger}, nil
}

// Routes constructs the chi router containing all API endpoints. Mutating
// endpoints require the admin role; authorization is decided here at the HTTP
// edge, the service layer assumes the caller already checked.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", a.handleCatalog)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", a.handleListBackups)
			r.With(requireRole("admin")).Post("/", a.handleCreateBackup)
			r.Get("/{id}", a.handleGetBackup)
			r.With(requireRole("admin")).Delete("/{id}", a.handleDelete(artifact.KindBackup))
			r.Get("/{id}/download", a.handleDownload(artifact.KindBackup))
		})

		r.Route("/software", func(r chi.Router) {
			r.Get("/", a.handleListSoftware)
			r.With(requireRole("admin")).Post("/", a.handleCreateSoftware)
			r.Get("/{id}", a.handleGetSoftware)
			r.With(requireRole("admin")).Delete("/{id}", a.handleDelete(artifact.KindSoftware))
			r.Get("/{id}/download", a.handleDownload(artifact.KindSoftware))
		})
	})

	return r, nil
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Operator-Role") != role {
				respondError(w, http.StatusForbidden, errors.New("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
