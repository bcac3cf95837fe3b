// Package config holds the application configuration loaded from environment variables.
package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is populated from the environment via Load.
type Config struct {
	// Outlook OAuth application credentials.
	// Environment variables: CLIENT_ID, CLIENT_SECRET
	ClientID     string `koanf:"CLIENT_ID"`
	ClientSecret string `koanf:"CLIENT_SECRET"`

	// Mail folders watched by the two jobs.
	// Environment variables: DEBIT_AND_CREDIT_FOLDER_ID, ADO_FOLDER_ID
	ExpenseFolderID string `koanf:"DEBIT_AND_CREDIT_FOLDER_ID"`
	TicketFolderID  string `koanf:"ADO_FOLDER_ID"`

	// Telegram delivery target.
	// Environment variables: TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
	TelegramBotToken string `koanf:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `koanf:"TELEGRAM_CHAT_ID"`

	// Firebase service account used for the token store.
	// Environment variables: PRIVATE_KEY, CLIENT_EMAIL, DATABASE_URL
	FirebasePrivateKey  string `koanf:"PRIVATE_KEY"`
	FirebaseClientEmail string `koanf:"CLIENT_EMAIL"`
	FirebaseDatabaseURL string `koanf:"DATABASE_URL"`

	// Billing portal identity and notification override.
	// Environment variables: INVOICE_RFC, INVOICE_EMAIL, PRIMARY_PASSENGER
	TaxID            string `koanf:"INVOICE_RFC"`
	InvoiceEmail     string `koanf:"INVOICE_EMAIL"`
	PrimaryPassenger string `koanf:"PRIMARY_PASSENGER"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every required value is present.
func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", c.ClientSecret},
		{"DEBIT_AND_CREDIT_FOLDER_ID", c.ExpenseFolderID},
		{"ADO_FOLDER_ID", c.TicketFolderID},
		{"TELEGRAM_BOT_TOKEN", c.TelegramBotToken},
		{"TELEGRAM_CHAT_ID", c.TelegramChatID},
		{"PRIVATE_KEY", c.FirebasePrivateKey},
		{"CLIENT_EMAIL", c.FirebaseClientEmail},
		{"DATABASE_URL", c.FirebaseDatabaseURL},
		{"INVOICE_RFC", c.TaxID},
		{"INVOICE_EMAIL", c.InvoiceEmail},
		{"PRIMARY_PASSENGER", c.PrimaryPassenger},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s environment variable is required", r.name)
		}
	}
	return nil
}
