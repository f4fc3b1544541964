package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

// StoreDSN builds the sqlite connection string for the device store at path.
func StoreDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// OpenWhatsApp loads (or creates) the device stored at storePath and returns a client for it.
func OpenWhatsApp(ctx context.Context, storePath string) (*whatsmeow.Client, error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0o700); err != nil {
		return nil, fmt.Errorf("creating whatsapp store directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite", StoreDSN(storePath),
		waLog.Zerolog(log.With().Str("module", "whatsmeow-store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("opening whatsapp store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading whatsapp device: %w", err)
	}

	return whatsmeow.NewClient(device, waLog.Zerolog(log.With().Str("module", "whatsmeow").Logger())), nil
}

// ConnectWhatsApp connects the client, logging pairing codes when the device has not been linked yet.
func ConnectWhatsApp(ctx context.Context, client *whatsmeow.Client) error {
	if client.Store.ID != nil {
		log.Info().Str("jid", client.Store.ID.String()).Msg("connecting to whatsapp")
		return client.Connect()
	}

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("requesting pairing channel: %w", err)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting to whatsapp: %w", err)
	}

	for evt := range qrChan {
		if evt.Event == "code" {
			log.Info().Str("code", evt.Code).Msg("link this device by encoding the code as a QR and scanning it")
			continue
		}

		log.Info().Str("event", evt.Event).Msg("pairing event")
	}

	return nil
}

// SelfID reports the linked account id, empty until paired.
func SelfID(client *whatsmeow.Client) func() string {
	return func() string {
		if client.Store == nil || client.Store.ID == nil {
			return ""
		}
		return client.Store.ID.String()
	}
}
