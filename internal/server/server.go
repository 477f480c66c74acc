// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: every dependency is built in New and
// handed down, so handlers never reach for globals and tests can build a
// complete server around an in-memory database.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB ──┬─→ repositories → services → handlers → routes
//	                            └─→ session backend (sqlite or redis) → session.Manager → auth.Gate
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/sakif/agromarket/internal/auth"
	"github.com/sakif/agromarket/internal/config"
	_ "github.com/sakif/agromarket/internal/docs"
	"github.com/sakif/agromarket/internal/handler"
	"github.com/sakif/agromarket/internal/mail"
	"github.com/sakif/agromarket/internal/metrics"
	"github.com/sakif/agromarket/internal/middleware"
	"github.com/sakif/agromarket/internal/model"
	sqliteRepo "github.com/sakif/agromarket/internal/repository/sqlite"
	"github.com/sakif/agromarket/internal/service"
	"github.com/sakif/agromarket/internal/session"
	"github.com/sakif/agromarket/internal/session/redisstore"
	"github.com/sakif/agromarket/internal/validation"
)

// sessionPurgeInterval is how often expired sqlite session rows are removed.
// Expired rows are already invisible to Get; the sweep only reclaims space.
const sessionPurgeInterval = 10 * time.Minute

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
	metrics *metrics.Metrics

	identity  auth.IdentityVerifier
	mailer    mail.Sender
	passwords *auth.PasswordService

	// closers run after the HTTP server stops, in order.
	closers []io.Closer
}

// Option overrides a dependency New would otherwise build from the config.
type Option func(*Server)

// WithIdentityVerifier replaces the Google userinfo client.
func WithIdentityVerifier(v auth.IdentityVerifier) Option {
	return func(s *Server) { s.identity = v }
}

// WithMailer replaces the SMTP or log mailer.
func WithMailer(m mail.Sender) Option {
	return func(s *Server) { s.mailer = m }
}

// WithPasswordService replaces the bcrypt service (tests use a low cost).
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New opens the database, builds every service and registers the routes.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.defaults()

	if err := s.setupRoutes(); err != nil {
		s.close()
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) defaults() {
	if s.identity == nil {
		s.identity = auth.NewGoogleVerifier(s.config.GoogleUserinfoURL, s.logger)
	}
	if s.mailer == nil {
		if s.config.SMTPHost != "" {
			s.mailer = mail.NewSMTPSender(mail.SMTPConfig{
				Host:     s.config.SMTPHost,
				Port:     s.config.SMTPPort,
				User:     s.config.SMTPUser,
				Password: s.config.SMTPPassword,
				From:     s.config.MailFrom,
			})
		} else {
			s.logger.Warn("SMTP_HOST not set, verification mails are only logged")
			s.mailer = mail.NewLogSender(s.logger)
		}
	}
	if s.passwords == nil {
		s.passwords = auth.NewPasswordService(s.config.BcryptCost)
	}
}

// secret returns configured, or a random key when it is empty. Random keys
// do not survive a restart, which logs everybody out.
func (s *Server) secret(configured, name string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	s.logger.Warn(name + " not set, using a random key for this process")
	return securecookie.GenerateRandomKey(32)
}

// sessionBackend picks where session values live.
func (s *Server) sessionBackend() (session.Backend, error) {
	if s.config.SessionBackend != "redis" {
		return s.db.Sessions(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	backend, err := redisstore.Dial(ctx, s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, backend)
	return backend, nil
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, RealIP: tag the request and fix r.RemoteAddr behind proxies
//  2. Logger: logs each request with timing info
//  3. Recoverer: turns panics into 500 instead of crashing
//  4. Instrument: Prometheus counters and histograms
//  5. CORS, SecurityHeaders: response headers for the browser
//  6. RateLimiter: per-IP budget, rejected requests still get logged and counted
func (s *Server) setupRoutes() error {
	// === Sessions ===
	backend, err := s.sessionBackend()
	if err != nil {
		return fmt.Errorf("session backend: %w", err)
	}
	store := session.NewStore(backend, sessions.Options{
		Path:     "/",
		MaxAge:   int(s.config.SessionMaxAge().Seconds()),
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}, s.secret(s.config.SessionSecret, "SESSION_SECRET"))
	sessionManager := session.NewManager(store, s.config.SessionName)

	verifySecret := s.secret(s.config.VerifySecret, "VERIFY_SECRET")
	tokens, err := auth.NewVerificationTokens(string(verifySecret))
	if err != nil {
		return err
	}

	// === Services ===
	repos := service.Repositories{
		Users:      s.db.Users(),
		Categories: s.db.Categories(),
		Products:   s.db.Products(),
		Offers:     s.db.Offers(),
		Orders:     s.db.Orders(),
	}
	refs := service.NewEnforcer(repos)
	validate := validation.New()

	authService := service.NewAuthService(service.AuthDeps{
		Users:      repos.Users,
		Passwords:  s.passwords,
		Identity:   s.identity,
		Tokens:     tokens,
		Mailer:     s.mailer,
		Validator:  validate,
		Events:     s.metrics,
		BackendAPI: s.config.BackendAPI,
	}, s.logger)
	userService := service.NewUserService(repos.Users, s.passwords, refs, validate, s.logger)
	categoryService := service.NewCategoryService(repos.Categories, refs, validate, s.logger)
	productService := service.NewProductService(repos.Products, refs, validate, s.logger)
	offerService := service.NewOfferService(repos.Offers, refs, validate, s.logger)
	orderService := service.NewOrderService(repos.Orders, refs, validate, s.logger)
	cartService := service.NewCartService(repos.Offers, validate)

	if s.config.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := userService.EnsureAdmin(ctx, s.config.AdminEmail, s.config.AdminPassword); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, sessionManager, s.logger)
	userHandler := handler.NewUserHandler(userService)
	catalogHandler := handler.NewCatalogHandler(categoryService, productService)
	offerHandler := handler.NewOfferHandler(offerService, s.logger)
	orderHandler := handler.NewOrderHandler(orderService, s.logger)
	cartHandler := handler.NewCartHandler(cartService, sessionManager)

	gate := auth.NewGate(sessionManager, handler.WriteError, s.logger)
	s.limiter = middleware.NewRateLimiter(s.config.RateLimit, s.config.RateWindow(), handler.WriteError, s.metrics.RateLimited)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Instrument)
	s.router.Use(middleware.NewCORS(s.config.CORSOrigins).Handler)
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(s.limiter.Handler)

	// === Ops ===
	s.router.Get("/", s.handleBanner)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	requireAuth := gate.RequireAuth
	admin := gate.RequireRoles(model.RoleAdmin)
	seller := gate.RequireRoles(model.RoleSP, model.RoleAdmin)

	// === Auth ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/google", authHandler.HandleGoogle)
		r.Post("/autologin", authHandler.HandleAutoLogin)
		r.Post("/closeapp", authHandler.HandleCloseApp)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/confirmation/{email}/{token}", authHandler.HandleConfirm)
		r.Get("/resend/{email}", authHandler.HandleResend)
	})

	// === Users ===
	s.router.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/{id}", userHandler.HandleGet)
		r.Patch("/profile/{id}", userHandler.HandleUpdateProfile)
		r.With(admin).Get("/", userHandler.HandleList)
		r.With(admin).Get("/keyword/{keyword}", userHandler.HandleSearch)
		r.With(admin).Post("/", userHandler.HandleCreate)
		r.With(admin).Patch("/{id}", userHandler.HandleUpdate)
		r.With(admin).Delete("/{id}", userHandler.HandleDelete)
	})

	// === Catalog ===
	s.router.Route("/categories", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", catalogHandler.HandleListCategories)
		r.Get("/{id}", catalogHandler.HandleGetCategory)
		r.With(admin).Post("/", catalogHandler.HandleCreateCategory)
		r.With(admin).Patch("/{id}", catalogHandler.HandleUpdateCategory)
		r.With(admin).Delete("/{id}", catalogHandler.HandleDeleteCategory)
	})
	s.router.Route("/products", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", catalogHandler.HandleListProducts)
		r.Get("/{id}", catalogHandler.HandleGetProduct)
		r.With(seller).Post("/", catalogHandler.HandleCreateProduct)
		r.With(seller).Patch("/{id}", catalogHandler.HandleUpdateProduct)
		r.With(admin).Delete("/{id}", catalogHandler.HandleDeleteProduct)
	})

	// === Offers ===
	// Listing routes are public; chi prefers the static "active" and
	// "myoffer" segments over the positional parameters.
	s.router.Route("/offers", func(r chi.Router) {
		r.Get("/", offerHandler.HandleList)
		r.Get("/{id}", offerHandler.HandleGet)
		r.Get("/{offset}/{limit}/{sortingfield}/{filter}", offerHandler.HandlePage(false))
		r.Get("/active/{offset}/{limit}/{sortingfield}/{filter}", offerHandler.HandlePage(true))
		r.Get("/{offset}/{limit}/{sortingfield}/{filter}/active", offerHandler.HandlePage(true))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, seller)
			r.Post("/", offerHandler.HandleCreate)
			r.Get("/myoffer/{id}", offerHandler.HandleListOwn)
			r.Patch("/myoffer/{id}", offerHandler.HandleUpdateOwn)
			r.Delete("/myoffer/{id}", offerHandler.HandleDeleteOwn)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, admin)
			r.Patch("/{id}", offerHandler.HandleUpdate)
			r.Delete("/{id}", offerHandler.HandleDelete)
		})
	})

	// === Orders ===
	s.router.Route("/orders", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", orderHandler.HandleList)
		r.Post("/", orderHandler.HandleCreate)
		r.Get("/{id}", orderHandler.HandleGet)
		r.Patch("/{id}", orderHandler.HandleUpdate)
		r.Delete("/{id}", orderHandler.HandleDelete)
		r.Delete("/{id}/{detail_id}", orderHandler.HandleDeleteDetail)
	})

	// === Cart ===
	s.router.Route("/cart", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", cartHandler.HandleGet)
		r.Post("/", cartHandler.HandleAdd)
		r.Delete("/", cartHandler.HandleClear)
	})

	return nil
}

// handleBanner answers GET / so a browser pointed at the API finds the docs.
func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<h1>Agromarket API</h1><p>See the <a href="/docs/index.html">API documentation</a>.</p>`)
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// purgeSessions deletes expired sqlite session rows until ctx is done.
func (s *Server) purgeSessions(ctx context.Context) {
	if s.config.SessionBackend == "redis" {
		return // redis expires keys itself
	}
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.db.Sessions().PurgeExpired(ctx)
			if err != nil {
				s.logger.Error("purging expired sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Debug("purged expired sessions", slog.Int64("count", n))
			}
		}
	}
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the background sweeps
//  4. Close the redis client (if any) and the database
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.close()

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go s.purgeSessions(bg)
	s.limiter.StartCleanup(bg, time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("sessions", s.config.SessionBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database and session backend without starting the
// server. Tests call it from t.Cleanup.
func (s *Server) Close() error {
	s.close()
	return s.db.Close()
}

func (s *Server) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
