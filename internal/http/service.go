package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	apicontract "github.com/barguni/barguni-api/api-contract"
	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/http/apierr"
	"github.com/barguni/barguni-api/internal/http/metric"
	"github.com/barguni/barguni-api/internal/http/middleware"
	"github.com/barguni/barguni-api/internal/http/swagger"
	"github.com/barguni/barguni-api/internal/service"
	"github.com/barguni/barguni-api/internal/storage/db"
	"github.com/barguni/barguni-api/pkg/validator"
)

// BasePath prefixes every API route.
const BasePath = "/api/v1"

var tracer = otel.Tracer("internal/http")

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	metrics  *metric.Metrics
	gatherer prometheus.Gatherer

	validator  validator.Validator
	health     db.HealthChecker
	productSvc service.ProductService
	pictureSvc service.PictureService
}

type CleanupFunc func(ctx context.Context) error

// Deps are the collaborators the HTTP service serves.
type Deps struct {
	Validator  validator.Validator
	Health     db.HealthChecker
	ProductSvc service.ProductService
	PictureSvc service.PictureService
}

// New creates the HTTP service. Its collectors are registered on reg and
// /metrics serves gatherer.
func New(
	cfg config.HTTP,
	log *slog.Logger,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
	deps Deps,
) *Service {
	return &Service{
		cfg:        cfg,
		logger:     log.With(slog.String("service", "http")),
		metrics:    metric.New(reg),
		gatherer:   gatherer,
		validator:  deps.Validator,
		health:     deps.Health,
		productSvc: deps.ProductSvc,
		pictureSvc: deps.PictureSvc,
	}
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handler, err := s.Handler()
	if err != nil {
		return nil, err
	}

	return s.RunWithServer(ctx, handler)
}

// Handler builds the router with every middleware and route.
func (s *Service) Handler() (http.Handler, error) {
	doc, err := apicontract.Load()
	if err != nil {
		return nil, fmt.Errorf("load api contract: %w", err)
	}
	validateRequest, err := middleware.OpenAPIValidator(doc, BasePath, s.logger)
	if err != nil {
		return nil, fmt.Errorf("create openapi validator: %w", err)
	}

	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		if err := swagger.Register(r, doc); err != nil {
			return nil, err
		}
	}

	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	}))
	r.Get(middleware.HealthPath, s.handleHealth)

	r.Route(BasePath, func(r chi.Router) {
		r.Use(validateRequest)
		s.RegisterHandlers(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusNotFound, apierr.ErrorResponse{
			Code:    "ROUTE_NOT_FOUND",
			Message: "route not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusMethodNotAllowed, apierr.ErrorResponse{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
		})
	})

	return r, nil
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", slog.Any("error", err))
		}
	}()
	s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(s.cfg.CorsOrigins),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	products := newProductHandler(s.productSvc, s.validator)
	r.Post("/products/resolve", s.handle(products.ResolveProduct))
	r.Get("/products", s.handle(products.ListProducts))
	r.Get("/products/barcode/{barcode}", s.handle(products.GetProductByBarcode))
	r.Get("/products/{productId}", s.handle(products.GetProduct))

	pictures := newPictureHandler(s.logger, s.pictureSvc)
	r.Get("/pictures/{pictureId}", s.handle(pictures.GetPicture))
	r.Get("/pictures/{pictureId}/content", s.handleRaw(pictures.GetPictureContent))
}

// response is what a handler answers with. A nil body writes no body.
type response struct {
	status int
	body   any
}

type handlerFunc func(r *http.Request) (response, error)

// rawHandlerFunc writes its own success response.
type rawHandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Service) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r)
		if err != nil {
			s.handleResponseError(w, r, err)
			return
		}
		s.writeJSON(w, r, res.status, res.body)
	}
}

func (s *Service) handleRaw(fn rawHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.handleResponseError(w, r, err)
		}
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WarnContext(r.Context(), "error encoding response", slog.Any("error", err))
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	s.writeJSON(w, r, res.StatusCode, res)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, err := s.health.IsHealthy(r.Context())
	if err != nil || !healthy {
		s.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
