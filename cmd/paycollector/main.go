// Package main запускает отдельный HTTP-сервис приёма платежей.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/charityfund-system/internal/config"
	"github.com/mmeshcher/charityfund-system/internal/notification"
	"github.com/mmeshcher/charityfund-system/internal/payment"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := payment.NewStore(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer store.Close()

	var processor *payment.ProcessorClient
	if cfg.ProcessorAddress != "" {
		processor = payment.NewProcessorClient(cfg.ProcessorAddress)
	}

	mailer := notification.NewMailer(cfg.SMTPAddress, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword, logger)

	svc := payment.NewService(store, processor, mailer, logger)
	defer svc.Close()

	h := payment.NewHandler(svc, logger)

	server := &http.Server{
		Addr:    cfg.PaymentRunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting payment collector", "addr", cfg.PaymentRunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down payment collector...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("payment collector stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
