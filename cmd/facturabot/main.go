// Command facturabot watches two Outlook mail folders: receipts become
// Telegram notifications with Debit & Credit deep links every minute, and
// accumulated bus tickets become portal invoices once a month.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yobain/facturabot/pkg/classifier"
	"github.com/yobain/facturabot/pkg/config"
	"github.com/yobain/facturabot/pkg/eligibility"
	"github.com/yobain/facturabot/pkg/invoicer"
	"github.com/yobain/facturabot/pkg/logging"
	"github.com/yobain/facturabot/pkg/mailbox"
	"github.com/yobain/facturabot/pkg/notify"
	"github.com/yobain/facturabot/pkg/runner"
	"github.com/yobain/facturabot/pkg/schedule"
	"github.com/yobain/facturabot/pkg/tokens"
)

const portalBaseURL = "http://factura.grupoado.com.mx"

func main() {
	logger := logging.Setup(logging.FromEnv())

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tokens.NewFirebaseStore(ctx, tokens.FirebaseConfig{
		DatabaseURL: cfg.FirebaseDatabaseURL,
		ClientEmail: cfg.FirebaseClientEmail,
		PrivateKey:  cfg.FirebasePrivateKey,
	})
	if err != nil {
		logger.Error("failed to create token store", "error", err)
		os.Exit(1)
	}

	source := tokens.NewSource(tokens.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, store, logger.With("component", "tokens"))

	mail := mailbox.New(mailbox.Config{Token: source.AccessToken}, logger.With("component", "mailbox"))

	telegram := notify.NewTelegram(notify.TelegramConfig{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
	}, logger.With("component", "telegram"))

	formatter, err := notify.NewFormatter(eligibility.Zone)
	if err != nil {
		logger.Error("failed to create formatter", "error", err)
		os.Exit(1)
	}

	filter, err := eligibility.New(cfg.PrimaryPassenger)
	if err != nil {
		logger.Error("failed to create eligibility filter", "error", err)
		os.Exit(1)
	}

	fetch := classifier.HTTPFetcher(&http.Client{Timeout: 2 * time.Minute})

	jobs := runner.New(runner.Config{
		ExpenseFolderID: cfg.ExpenseFolderID,
		TicketFolderID:  cfg.TicketFolderID,
	}, runner.Deps{
		Mailbox:    mail,
		Notifier:   telegram,
		Classifier: classifier.New(classifier.DefaultRules(fetch), logger.With("component", "classifier")),
		Fetch:      fetch,
		Filter:     filter,
		Submitter: invoicer.New(invoicer.Config{
			BaseURL:      portalBaseURL,
			TaxID:        cfg.TaxID,
			InvoiceEmail: cfg.InvoiceEmail,
		}, logger.With("component", "invoicer")),
		Formatter: formatter,
	}, logger.With("component", "runner"))

	loc, err := time.LoadLocation(eligibility.Zone)
	if err != nil {
		logger.Error("failed to load timezone", "error", err)
		os.Exit(1)
	}

	sched := schedule.New(logger.With("component", "schedule"))
	sched.Add(schedule.Job{Name: "expenses", Next: schedule.Every(time.Minute), Run: jobs.RunExpenses})
	sched.Add(schedule.Job{Name: "invoicing", Next: schedule.MonthlyAt(1, 9, 30, loc), Run: jobs.RunInvoicing})

	logger.Info("facturabot started")
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("facturabot stopped")
}
