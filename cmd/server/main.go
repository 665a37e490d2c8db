// SundayBot - WhatsApp Church Assistant Server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/sundaybot/internal/agent"
	"github.com/ashureev/sundaybot/internal/api"
	"github.com/ashureev/sundaybot/internal/catalog"
	"github.com/ashureev/sundaybot/internal/config"
	"github.com/ashureev/sundaybot/internal/console"
	"github.com/ashureev/sundaybot/internal/content"
	"github.com/ashureev/sundaybot/internal/dispatch"
	"github.com/ashureev/sundaybot/internal/engine"
	"github.com/ashureev/sundaybot/internal/export"
	"github.com/ashureev/sundaybot/internal/identity"
	"github.com/ashureev/sundaybot/internal/middleware"
	"github.com/ashureev/sundaybot/internal/store"
	"github.com/ashureev/sundaybot/internal/whatsapp"
	"github.com/ashureev/sundaybot/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "session_backend", cfg.SessionBackend)

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		cat = loaded
	}

	// Registrations always live in SQLite. Sessions and the inbox follow
	// SESSION_BACKEND.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	var (
		sessions store.SessionStore = repo
		inbox    store.Inbox        = repo
	)
	checks := map[string]api.Pinger{"database": repo}

	if cfg.SessionBackend == config.BackendRedis {
		rs, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.SessionTTL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if closeErr := rs.Close(); closeErr != nil {
				slog.Error("Failed to close redis", "error", closeErr)
			}
		}()
		sessions, inbox = rs, rs
		checks["sessions"] = rs
		slog.Info("Redis session store connected", "addr", cfg.RedisAddr)
	} else {
		store.StartSweeper(ctx, repo, cfg.SessionTTL)
	}

	library := content.NewLibrary(cfg.ContentDir)
	defer func() {
		if closeErr := library.Close(); closeErr != nil {
			slog.Error("Failed to close content library", "error", closeErr)
		}
	}()

	answers := agent.NewService(ctx, agent.Config{
		Address:        cfg.Agent.Address,
		GeminiAPIKey:   cfg.Agent.GeminiAPIKey,
		GeminiModel:    cfg.Agent.GeminiModel,
		RequestTimeout: cfg.Agent.Timeout,
	}, logger)
	defer answers.Close()
	slog.Info("Lesson questions", "enabled", answers.Available())

	wa := whatsapp.NewClient(whatsapp.Config{
		Token:         cfg.WhatsApp.Token,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		APIVersion:    cfg.WhatsApp.APIVersion,
	}, logger)
	if !wa.Configured() {
		slog.Warn("WhatsApp credentials missing, outbound messages will fail")
	}

	var hub *console.Hub
	mux := dispatch.NewMux(wa, nil)
	if cfg.ConsoleEnabled {
		hub = console.NewHub()
		mux = dispatch.NewMux(wa, hub)
	}

	var exporter engine.Exporter
	if cfg.GoogleCredentials != "" {
		sheet, err := export.NewSheetsWriter(ctx, export.CredentialsOption(cfg.GoogleCredentials))
		if err != nil {
			slog.Warn("Sheets export disabled", "error", err)
		} else {
			exporter = export.New(repo, sheet, cat, logger)
		}
	} else {
		slog.Info("Sheets export disabled (GOOGLE_CREDENTIALS_JSON not set)")
	}

	eng, err := engine.New(engine.Deps{
		Sessions:      sessions,
		Registrations: repo,
		Content:       library,
		Dispatcher:    mux,
		Answerer:      answers,
		Exporter:      exporter,
		Catalog:       cat,
		Admins:        identity.NewAllowList(cfg.AdminNumbers),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	api.NewHealthHandler(checks, 0).RegisterHealth(r)

	webhook := api.NewWebhookHandler(eng, inbox, api.WebhookConfig{VerifyToken: cfg.WhatsApp.VerifyToken})
	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifySignature(cfg.WhatsApp.AppSecret))
		webhook.RegisterRoutes(r)
	})
	if cfg.WhatsApp.AppSecret == "" {
		slog.Warn("WHATSAPP_APP_SECRET not set, webhook signatures are not checked")
	}

	if hub != nil {
		ws := console.NewHandler(hub, eng, cfg.FrontendURL, cfg.IsDevelopment())
		r.Group(func(r chi.Router) {
			r.Use(identity.ConsoleMiddleware(!cfg.IsDevelopment()))
			r.Handle("/console", web.ConsoleHandler())
			r.Handle("/console/*", web.ConsoleHandler())
			r.Get("/ws/console", ws.ServeHTTP)
		})
		slog.Info("Developer console enabled", "path", "/console")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // console sockets are long-lived
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		// The stores close when run returns; let accepted messages finish first.
		if err := webhook.Wait(shutdownCtx); err != nil {
			return fmt.Errorf("drain webhook handlers: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
