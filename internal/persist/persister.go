package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/monitoring"

	"go.uber.org/zap"
)

const defaultWriteTimeout = 2 * time.Second

// Persister binds a Backend to one shopper's snapshot key.
type Persister struct {
	backend Backend
	key     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPersister creates a persister for key. A nil logger discards output.
func NewPersister(backend Backend, key string, logger *zap.Logger) *Persister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{
		backend: backend,
		key:     key,
		timeout: defaultWriteTimeout,
		logger:  logger.With(zap.String("backend", backend.Name()), zap.String("key", key)),
	}
}

// Save writes snap synchronously. It is called after every store mutation.
func (p *Persister) Save(snap domain.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.backend.Write(ctx, p.key, data); err != nil {
		monitoring.RecordPersistFailure(p.backend.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An absent, empty, corrupt or incompatible snapshot
// yields an empty cart; only backend failures are returned as errors.
func (p *Persister) Load(ctx context.Context) (domain.Snapshot, error) {
	data, err := p.backend.Read(ctx, p.key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EmptySnapshot(), nil
	}
	if err != nil {
		return domain.EmptySnapshot(), fmt.Errorf("read snapshot: %w", err)
	}

	snap, report, err := Decode(data)
	if err != nil {
		p.logger.Warn("discarding unreadable cart snapshot", zap.Error(err))
		monitoring.RecordSnapshotRepair("discarded", 1)
		return domain.EmptySnapshot(), nil
	}
	if len(report.RepairedItems) > 0 {
		p.logger.Debug("filled missing product snapshots", zap.Int64s("item_ids", report.RepairedItems))
		monitoring.RecordSnapshotRepair("placeholder", len(report.RepairedItems))
	}
	if report.DroppedItems > 0 {
		p.logger.Debug("dropped invalid cart lines", zap.Int("count", report.DroppedItems))
		monitoring.RecordSnapshotRepair("dropped", report.DroppedItems)
	}
	if report.Migrated {
		p.logger.Info("migrated cart snapshot to current version", zap.Int("version", domain.SnapshotVersion))
	}
	return snap, nil
}

// Clear deletes the stored snapshot.
func (p *Persister) Clear(ctx context.Context) error {
	return p.backend.Delete(ctx, p.key)
}
