package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/facefind/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/facefind/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facefind/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facefind/internal/ws"
)

type Dependencies struct {
	Sessions handler.SessionService
	Hub      *ws.Hub
	// DB is optional; /ready pings it when set
	DB handler.Pinger
}

type Options struct {
	CORSOrigins     string
	BodyLimit       int
	RateLimitMax    int
	RateLimitWindow time.Duration
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	opts        Options
	rateLimiter *middleware.RateLimiter
	cancelHub   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies, opts Options) *Router {
	if opts.CORSOrigins == "" {
		opts.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facefind API",
		BodyLimit:    opts.BodyLimit,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
		opts:   opts,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.opts.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints
	var db handler.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Session routes need a service
	if r.deps == nil || r.deps.Sessions == nil {
		return
	}

	// Rate limiting (per client IP) on session creation only
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.opts.RateLimitMax,
		Window: r.opts.RateLimitWindow,
	})

	sessionHandler := handler.NewSessionHandler(r.deps.Sessions, r.logger)

	v1.Post("/sessions", r.rateLimiter.Handler(), sessionHandler.Create)
	v1.Get("/sessions/:id", sessionHandler.Get)
	v1.Get("/sessions/:id/archive", sessionHandler.Archive)
	v1.Get("/sessions/:id/photos/:name", sessionHandler.Photo)

	// WebSocket progress stream
	if r.deps.Hub != nil {
		hubCtx, hubCancel := context.WithCancel(context.Background())
		r.cancelHub = hubCancel
		go r.deps.Hub.Run(hubCtx)

		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight sessions up
// to the deadline of ctx.
func (r *Router) Shutdown(ctx context.Context) error {
	err := r.app.ShutdownWithContext(ctx)

	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return err
}
