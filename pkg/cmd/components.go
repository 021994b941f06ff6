// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/triggers"
)

// NewDirectory loads the RBAC directory file. An empty path gives an empty directory,
// which fails every approver check.
func NewDirectory(logger *slog.Logger, path string) (*rbac.StaticDirectory, error) {
	if path == "" {
		logger.Warn("No directory file configured, approver checks will fail")

		return rbac.NewStaticDirectory(rbac.DirectorySpec{}), nil
	}

	directory, err := rbac.LoadDirectory(path)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded directory", "path", path)

	return directory, nil
}

// NewDedupStore returns a Redis-backed trigger dedup store when redisURL is set and an
// in-process one otherwise. The returned close func is never nil.
func NewDedupStore(ctx context.Context, logger *slog.Logger, redisURL string) (triggers.DedupStore, func() error, error) {
	if redisURL == "" {
		logger.InfoContext(ctx, "Using in-memory trigger dedup store")

		return triggers.NewMemoryDedupStore(triggers.DefaultDedupTTL), func() error { return nil }, nil
	}

	store, err := triggers.NewRedisDedupStoreFromURL(ctx, redisURL, triggers.DefaultDedupTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect trigger dedup store: %w", err)
	}

	logger.InfoContext(ctx, "Using redis trigger dedup store")

	return store, store.Close, nil
}
