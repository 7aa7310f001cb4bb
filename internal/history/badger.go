package history

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/pixelparity/internal/common"
	"github.com/ternarybob/pixelparity/internal/models"
)

// BadgerStore is a badgerhold-backed Store.
type BadgerStore struct {
	store    *badgerhold.Store
	logger   arbor.ILogger
	keepRuns int
}

// Open returns the configured store: NoopStore when no path is set.
func Open(logger arbor.ILogger, config *common.HistoryConfig) (Store, error) {
	if config.Path == "" {
		return NoopStore{}, nil
	}
	return NewBadgerStore(logger, config.Path, config.KeepRuns)
}

// NewBadgerStore opens (creating if needed) the history database at path.
func NewBadgerStore(logger arbor.ILogger, path string, keepRuns int) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Opening run history")

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Badger's own logger is noisy; arbor covers it

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	return &BadgerStore{store: store, logger: logger, keepRuns: keepRuns}, nil
}

// Record upserts rec and prunes the component's older runs beyond keepRuns.
func (s *BadgerStore) Record(ctx context.Context, rec *models.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}
	return s.prune(rec.Component)
}

func (s *BadgerStore) prune(component string) error {
	if s.keepRuns <= 0 {
		return nil
	}

	var records []models.RunRecord
	query := badgerhold.Where("Component").Eq(component).SortBy("StartedAt").Reverse().Skip(s.keepRuns)
	if err := s.store.Find(&records, query); err != nil {
		return fmt.Errorf("failed to list runs for pruning: %w", err)
	}

	for _, r := range records {
		if err := s.store.Delete(r.ID, &models.RunRecord{}); err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to prune run %s: %w", r.ID, err)
		}
	}
	if len(records) > 0 {
		s.logger.Debug().Str("component", component).Int("pruned", len(records)).Msg("Pruned run history")
	}
	return nil
}

// Last returns up to n records for component, newest first.
func (s *BadgerStore) Last(ctx context.Context, component string, n int) ([]models.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := badgerhold.Where("Component").Eq(component).SortBy("StartedAt").Reverse()
	if n > 0 {
		query = query.Limit(n)
	}

	var records []models.RunRecord
	if err := s.store.Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", component, err)
	}
	return records, nil
}

// Drift compares the two most recent runs of component.
func (s *BadgerStore) Drift(ctx context.Context, component string) (bool, error) {
	records, err := s.Last(ctx, component, 2)
	if err != nil {
		return false, err
	}
	return drifted(records), nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
