// Command maildump writes the raw HTML body of every message in a mail
// folder to disk, one file per message. Useful for capturing real vendor
// receipts as parser fixtures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yobain/facturabot/pkg/config"
	"github.com/yobain/facturabot/pkg/logging"
	"github.com/yobain/facturabot/pkg/mailbox"
	"github.com/yobain/facturabot/pkg/tokens"
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func main() {
	folderID := flag.String("folder", "", "mail folder id (defaults to DEBIT_AND_CREDIT_FOLDER_ID)")
	outDir := flag.String("out", "testdata/mail", "output directory")
	flag.Parse()

	logger := logging.Setup(logging.FromEnv())

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *folderID == "" {
		*folderID = cfg.ExpenseFolderID
	}
	if *folderID == "" {
		logger.Error("no folder id given")
		os.Exit(1)
	}

	ctx := context.Background()

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
	}, store, logger)

	mail := mailbox.New(mailbox.Config{Token: source.AccessToken}, logger)

	messages, err := mail.FetchMessages(ctx, *folderID)
	if err != nil {
		logger.Error("failed to fetch messages", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	for i, msg := range messages {
		name := fmt.Sprintf("%03d_%s_%s.html", i, sanitize(msg.SenderName), sanitize(msg.Subject))
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, []byte(msg.Body), 0o644); err != nil {
			logger.Error("failed to write message", "path", path, "error", err)
			continue
		}
		logger.Info("wrote message", "path", path)
	}
}

func sanitize(s string) string {
	s = reUnsafe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
