// Package main runs the development backend the companion client talks to.
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

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/config"
	"github.com/eunoia-wellness/companion/internal/handler"
	"github.com/eunoia-wellness/companion/internal/llm"
	"github.com/eunoia-wellness/companion/internal/service"
	"github.com/eunoia-wellness/companion/internal/store"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("backend stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	bc := cfg.Backend
	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "companion-mockbackend", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var st store.Store
	if bc.BoltPath != "" {
		b, err := store.OpenBolt(bc.BoltPath)
		if err != nil {
			return err
		}
		st = b
		log.Info("using bolt store", zap.String("path", bc.BoltPath))
	} else {
		st = store.NewMemory()
		log.Info("using in-memory store")
	}
	defer st.Close()

	llmClient, err := llm.NewClient(llm.Config{
		AnthropicAPIKey: bc.AnthropicAPIKey,
		OpenAIAPIKey:    bc.OpenAIAPIKey,
		Model:           bc.Model,
		TokenDelay:      bc.TokenDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	log.Info("reply provider selected", zap.String("provider", llmClient.Name()))

	conversationSvc := service.NewConversationService(st, log)
	messageSvc := service.NewMessageService(conversationSvc, st, llmClient, bc.Model, log)
	safetySvc := service.NewSafetyService(st, log)

	if bc.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, API authentication disabled")
	}

	server := &http.Server{
		Addr: ":" + bc.ServerPort,
		Handler: handler.NewRouter(handler.RouterConfig{
			Conversations: conversationSvc,
			Messages:      messageSvc,
			Safety:        safetySvc,
			Checks: map[string]handler.Check{
				"store": func(ctx context.Context) error {
					_, err := st.ListByUser(ctx, "")
					return err
				},
			},
			JWTSecret:         bc.JWTSecret,
			RateLimitRequests: bc.RateLimitRequests,
			RateLimitWindow:   bc.RateLimitWindow,
			Logger:            log,
		}),
		ReadTimeout:  bc.ServerReadTimeout,
		WriteTimeout: bc.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", bc.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
