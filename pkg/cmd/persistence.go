package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/badger"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/file"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "badger"}

// NewPersistence opens the record store selected by the URL scheme. A URL without a
// known scheme is a file store directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	case "badger":
		p, err := badger.NewPersistence(logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
