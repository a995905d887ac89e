// Package jsonstore persists the portfolio ledger as a JSON document on
// disk. Writes are atomic (temp file plus rename) so a crash mid-save never
// leaves a torn state file, and the encoding is deterministic so an
// unmodified load/save cycle reproduces the file byte for byte.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"
)

// Store implements ports.LedgerStore on a single JSON file.
type Store struct {
	path   string
	logger ports.Logger
}

// Config holds configuration for the JSON store.
type Config struct {
	Path   string
	Logger ports.Logger
}

// New creates the store and ensures its directory exists.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for JSON store")
	}
	path := cfg.Path
	if path == "" {
		path = "./data/portfolio_state.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %q: %w", filepath.Dir(path), err)
	}
	return &Store{path: path, logger: cfg.Logger}, nil
}

// Load reads the persisted ledger state. A missing file is not an error; it
// means no state has been saved yet and the caller should start fresh.
func (s *Store) Load(ctx context.Context) (*domain.LedgerState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info(ctx, "No persisted ledger state found", map[string]interface{}{"path": s.path})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger state from %q: %w", s.path, err)
	}

	var st domain.LedgerState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode ledger state from %q: %w", s.path, err)
	}
	s.logger.Info(ctx, "Loaded persisted ledger state", map[string]interface{}{
		"path":      s.path,
		"cash":      st.Cash,
		"positions": len(st.Positions),
		"trades":    len(st.TradeHistory),
	})
	return &st, nil
}

// Save atomically replaces the state file.
func (s *Store) Save(ctx context.Context, state *domain.LedgerState) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ports.ErrPersistenceFailed)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ports.ErrPersistenceFailed, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ports.ErrPersistenceFailed, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write: %v", ports.ErrPersistenceFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync: %v", ports.ErrPersistenceFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", ports.ErrPersistenceFailed, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ports.ErrPersistenceFailed, err)
	}

	s.logger.Debug(ctx, "Ledger state persisted", map[string]interface{}{"path": s.path, "bytes": len(data)})
	return nil
}
