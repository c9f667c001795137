package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwaldner/bsheat/internal/config"
	"github.com/jwaldner/bsheat/internal/dispatch"
	"github.com/jwaldner/bsheat/internal/handlers"
	"github.com/jwaldner/bsheat/internal/logger"
	"github.com/jwaldner/bsheat/internal/mailer"
	"github.com/jwaldner/bsheat/internal/store"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Initialize proper logging with config level and file path
	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()
	logger.Always.Printf("🚀 Black-Scholes pricer starting - Port: %s", cfg.Port)

	// Collaborators are optional; a nil interface disables the feature
	var (
		saver  dispatch.QuoteSaver
		sender dispatch.Sender
		quotes handlers.QuoteLister
	)

	if cfg.Store.Driver != "" {
		st, err := store.Open(cfg.Store)
		if err != nil {
			log.Fatalf("Failed to open quote store: %v", err)
		}
		defer st.Close()
		saver, quotes = st, st
		logger.Always.Printf("🗄️ Quote history: %s", cfg.Store.Driver)
	} else {
		logger.Always.Printf("🗄️ Quote history disabled (no store driver)")
	}

	if cfg.SMTP.Host != "" {
		sender = mailer.New(cfg.SMTP)
		logger.Always.Printf("📧 Heatmap e-mail via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		logger.Always.Printf("📧 Heatmap e-mail disabled (no SMTP host)")
	}

	dispatcher := dispatch.New(saver, sender, dispatch.Options{
		QueueSize:   cfg.Dispatch.QueueSize,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
	})
	dispatcher.Start()
	defer dispatcher.Close()

	pricingHandler := handlers.NewPricingHandler(cfg, dispatcher, quotes)

	// Setup router
	r := mux.NewRouter()
	pricingHandler.Register(r)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	fmt.Printf("🌐 Server starting on http://localhost:%s\n", cfg.Port)
	logger.Always.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error.Printf("❌ Server failed: %v", err)
			log.Fatal("Server failed to start:", err)
		}
	case sig := <-stop:
		logger.Always.Printf("🛑 %s received, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error.Printf("❌ Shutdown: %v", err)
	}
}
