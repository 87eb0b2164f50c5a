package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/agent"
	"github.com/claytonlow/twilio-deepgram/internal/bridge"
	"github.com/claytonlow/twilio-deepgram/internal/config"
	"github.com/claytonlow/twilio-deepgram/internal/dispatch"
	"github.com/claytonlow/twilio-deepgram/internal/handler"
	"github.com/claytonlow/twilio-deepgram/internal/lookup"
	"github.com/claytonlow/twilio-deepgram/internal/probe"
	"github.com/claytonlow/twilio-deepgram/internal/twilioapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("twilio-deepgram bridge starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("agent", cfg.AgentURL),
		zap.String("lookup", cfg.LookupProvider),
		zap.Int("maxSessions", cfg.MaxSessions),
	)

	d := dispatch.New(map[string]dispatch.Capability{
		agent.LookupFunctionName: newCapability(cfg, logger),
	}, logger)
	b := bridge.New(cfg, logger, d)

	var numbers handler.PhoneNumberLister
	if cfg.HasTwilioCredentials() {
		c, err := twilioapi.New(twilioapi.Config{AccountSID: cfg.TwilioAccountSID, AuthToken: cfg.TwilioAuthToken})
		if err != nil {
			logger.Fatal("failed to create twilio client", zap.Error(err))
		}
		numbers = c
	}
	h := handler.NewHandlers(logger, cfg.PublicStreamURL, numbers)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.NewRouter(h, b, logger, cfg.InternalAPIToken),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	var health *probe.Server
	if cfg.GRPCHealthAddr != "" {
		health, err = probe.Listen(cfg.GRPCHealthAddr, logger)
		if err != nil {
			logger.Fatal("failed to start grpc health", zap.Error(err))
		}
		go func() {
			if err := health.Serve(); err != nil {
				logger.Error("grpc health failed", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if health != nil {
		health.SetServing(false)
	}
	b.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if health != nil {
		health.Stop()
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func newCapability(cfg *config.Config, logger *zap.Logger) dispatch.Capability {
	switch cfg.LookupProvider {
	case "openai":
		return lookup.NewOpenAI(lookup.OpenAIOptions{
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LookupTimeout,
		}, logger)
	default:
		return lookup.NewFlowise(lookup.FlowiseOptions{
			BaseURL:    cfg.FlowiseURL,
			Token:      cfg.FlowiseToken,
			ChatflowID: cfg.FlowiseChatflowID,
			Timeout:    cfg.LookupTimeout,
		}, logger)
	}
}
