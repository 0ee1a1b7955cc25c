package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/gravcine/gravcine/internal/account"
	"github.com/gravcine/gravcine/internal/app"
	"github.com/gravcine/gravcine/internal/env"
	"github.com/gravcine/gravcine/internal/handlers"
	"github.com/gravcine/gravcine/internal/logger"
	"github.com/gravcine/gravcine/internal/session"
	"github.com/gravcine/gravcine/internal/store"
	"github.com/gravcine/gravcine/internal/tmdb"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort   = "8080"
	defaultDBPath = "gravcine.db"
)

func main() {
	level := slog.LevelDebug
	if env.Current == env.Production {
		level = slog.LevelInfo
	}
	slog.SetDefault(logger.New(level))
	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	apiKey := os.Getenv("TMDB_API_KEY")
	if apiKey == "" {
		return errors.New("TMDB_API_KEY is required")
	}
	accountAPI := os.Getenv("ACCOUNT_API_URL")
	if accountAPI == "" {
		return errors.New("ACCOUNT_API_URL is required")
	}

	st, err := store.Open(env.Or("DB_PATH", defaultDBPath))
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	mc := tmdb.New(tmdb.Config{
		APIKey:    apiKey,
		ReadToken: os.Getenv("TMDB_API_READ_TOKEN"),
		Locale:    os.Getenv("LOCALE"),
	})
	ac := account.New(accountAPI)

	mgr := session.NewManager(slog.Default(), st, ac)
	defer mgr.Wait()

	if _, err := mgr.Restore(context.Background()); err != nil {
		slog.Warn("session restore failed", logger.Error(err))
	}

	a := app.New(slog.Default(), mc, ac, mgr)
	go a.LoadHome(context.Background())

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(slog.Default(), &httplog.Options{
		Level:         slog.LevelInfo,
		RecoverPanics: true,
	}))
	r.Route("/api", handlers.New(a).Routes)

	addr := ":" + env.Or("PORT", defaultPort)
	slog.Info("listening", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
