package http

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pdfrag/internal/faq"
	"pdfrag/internal/handlers"
	"pdfrag/internal/metrics"
	"pdfrag/internal/service"
)

//go:embed index.html
var defaultIndexHTML string

// Deps holds dependencies for the HTTP router.
type Deps struct {
	AskService     service.AskService
	LibraryService service.LibraryService
	FAQ            *faq.Catalogue
	Metrics        *metrics.Metrics
	HealthChecks   []handlers.HealthCheck
	IndexHTML      string // Page served at "/"; empty uses the built-in page
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(deps.Metrics.Middleware)

	askHandler := handlers.NewAskHandler(deps.AskService)
	searchHandler := handlers.NewSearchHandler(deps.AskService)
	conversationHandler := handlers.NewConversationHandler(deps.AskService)
	libraryHandler := handlers.NewLibraryHandler(deps.LibraryService)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks...)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Get("/status", libraryHandler.Status)
		r.Get("/stats", libraryHandler.Stats)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", libraryHandler.List)
			r.Post("/", libraryHandler.Upload)
			r.Delete("/", libraryHandler.Clear)
			r.Post("/reindex", libraryHandler.Reindex)
			r.Delete("/*", libraryHandler.Remove)
		})

		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodPost, "/ask", askHandler)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/{id}", conversationHandler.Get)
			r.Delete("/{id}", conversationHandler.Delete)
			r.Delete("/{id}/turns", conversationHandler.ClearTurns)
		})

		if deps.FAQ != nil {
			faqHandler := handlers.NewFAQHandler(deps.FAQ, deps.AskService)
			r.Get("/faq", faqHandler.List)
			r.Post("/faq/ask", faqHandler.Ask)
		}
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	indexHTML := deps.IndexHTML
	if indexHTML == "" {
		indexHTML = defaultIndexHTML
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(indexHTML))
	})

	return r
}
