package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/integrations/internal/provider"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/rules"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the integrations service.
type Server struct {
	port     int
	couriers *provider.CourierFactory
	taxes    *provider.TaxFactory
	admin    *provider.Service
	engine   *rules.Engine
	methods  *store.MethodRepository
	logs     *store.LogRepository
	fallback provider.Fallback
	gatherer prometheus.Gatherer
	logger   *otelzap.Logger
	validate *validator.Validate
}

// Config holds server configuration.
type Config struct {
	Port int
}

// Deps are the collaborators the handlers call into. Methods and Logs are
// optional; their routes answer 503 when unset.
type Deps struct {
	Couriers    *provider.CourierFactory
	Taxes       *provider.TaxFactory
	Admin       *provider.Service
	Engine      *rules.Engine
	Methods     *store.MethodRepository
	Logs        *store.LogRepository
	TaxFallback provider.Fallback
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance.
func New(cfg Config, deps Deps, logger *otelzap.Logger) *Server {
	if logger == nil {
		logger = otelzap.New(zap.NewNop())
	}
	return &Server{
		port:     cfg.Port,
		couriers: deps.Couriers,
		taxes:    deps.Taxes,
		admin:    deps.Admin,
		engine:   deps.Engine,
		methods:  deps.Methods,
		logs:     deps.Logs,
		fallback: deps.TaxFallback,
		gatherer: deps.Gatherer,
		logger:   logger,
		validate: validator.New(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/shipping", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requires(s.engine != nil, "shipping rule engine"))
				r.Post("/rates", s.handleShippingRates)
				r.Post("/options", s.handleShippingOptions)
			})
			r.Group(func(r chi.Router) {
				r.Use(s.requires(s.methods != nil, "shipping method storage"))
				r.Get("/methods", s.handleListMethods)
				r.Post("/methods", s.handleSaveMethod)
				r.Delete("/methods/{id}", s.handleDeleteMethod)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requires(s.couriers != nil, "carrier factory"))
			r.Route("/carriers", func(r chi.Router) {
				r.Get("/", s.handleListCarriers)
				r.Post("/rates", s.handleAllRates)
				r.Route("/{provider}", func(r chi.Router) {
					r.Post("/rates", s.handleProviderRates)
					r.Post("/shipments", s.handleCreateShipment)
					r.Delete("/shipments/{id}", s.handleCancelShipment)
					r.Post("/addresses/validate", s.handleValidateAddress)
					r.Post("/pickups", s.handleSchedulePickup)
					r.Get("/services", s.handleServices)
				})
			})
			r.Get("/tracking/{number}", s.handleTrack)
		})

		r.Route("/tax", func(r chi.Router) {
			r.Use(s.requires(s.taxes != nil, "tax factory"))
			r.Post("/calculate", s.handleCalculateTax)
			r.Post("/transactions/{id}/commit", s.handleCommitTax)
			r.Post("/transactions/{id}/void", s.handleVoidTax)
			r.Post("/transactions/{id}/refund", s.handleRefundTax)
			r.Post("/addresses/validate", s.handleValidateTaxAddress)
			r.Get("/codes", s.handleTaxCodes)
			r.Get("/nexus", s.handleNexus)
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Use(s.requires(s.admin != nil, "integration admin"))
			r.Get("/", s.handleListIntegrations)
			r.Post("/", s.handleCreateIntegration)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetIntegration)
				r.Put("/", s.handleUpdateIntegration)
				r.Delete("/", s.handleDeleteIntegration)
				r.Post("/test", s.handleTestIntegration)
				r.Post("/activate", s.handleSetActive(true))
				r.Post("/deactivate", s.handleSetActive(false))
				r.Post("/webhook-secret", s.handleRotateWebhookSecret)
				r.With(s.requires(s.logs != nil, "integration logs")).Get("/logs", s.handleIntegrationLogs)
			})
		})
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// requires answers 503 on every route it guards when a collaborator is not
// wired.
func (s *Server) requires(present bool, what string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if present {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, r, unavailable(what))
		})
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Ctx(r.Context()).Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
