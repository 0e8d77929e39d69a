package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"support-chatbot/internal/api"
	"support-chatbot/internal/catalog"
	"support-chatbot/internal/chat"
	"support-chatbot/internal/config"
	"support-chatbot/internal/crawler"
	"support-chatbot/internal/knowledge"
	"support-chatbot/internal/llm"
	"support-chatbot/internal/metrics"
	"support-chatbot/internal/parser"
	"support-chatbot/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	l, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	m := metrics.New()
	client := crawler.NewHTTPClient(cfg.Site.FetchTimeout, 5*time.Second, cfg.Site.MaxBodyBytes, cfg.Site.UserAgent)
	store := knowledge.New(
		knowledge.NewSources(cfg.Site.BaseURL, cfg.Site.Paths, cfg.Site.PagesFile),
		client,
		parser.New(cfg.Site.BaseURL),
		l.With(logger.String("component", "knowledge")),
		knowledge.WithMetrics(m),
	)

	completer, err := llm.New(cfg.Completion)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		l.Warn("OPENAI_API_KEY not set, general questions will get the unavailable message")
	case err != nil:
		return err
	}
	products := catalog.Default()
	composer := chat.New(store, products, completer, l.With(logger.String("component", "chat")),
		chat.WithMetrics(m),
		chat.WithCompletion(cfg.Completion.Timeout, cfg.Completion.MaxTokens, cfg.Completion.Temperature))

	if cfg.Refresh.OnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Refresh.Timeout)
		if _, err := store.Refresh(ctx); err != nil {
			l.Error("startup refresh failed, serving with an empty store", logger.Error(err))
		}
		cancel()
	}

	if cfg.Refresh.Schedule != "" {
		sched, err := knowledge.NewScheduler(cfg.Refresh.Schedule, store, cfg.Refresh.Timeout, l)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := api.NewHandler(composer, store, products, cfg.Refresh.Timeout, l)
	router := api.NewRouter(h, m, l)
	api.ServeFrontend(router, cfg.Server.StaticDir)
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	l.Info("bye")
	return nil
}
