package service

import (
	"context"
	"time"

	apprepository "github.com/sifan077/GeoLink/internal/app/repository"
	"go.uber.org/zap"
)

// ArchivePruner periodically deletes archived clicks older than the retention window.
type ArchivePruner struct {
	logger    *zap.Logger
	repo      apprepository.ClickArchiveRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	done      chan struct{}
}

// NewArchivePruner creates a new archive pruner.
func NewArchivePruner(logger *zap.Logger, repo apprepository.ClickArchiveRepository, retention, interval time.Duration) *ArchivePruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ArchivePruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the periodic pruning.
func (p *ArchivePruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning and waits for the loop to exit.
func (p *ArchivePruner) Stop() {
	close(p.stopChan)
	<-p.done
}

func (p *ArchivePruner) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("archive pruner stopped")
			return
		}
	}
}

// Prune runs one pruning pass. A non-positive retention keeps everything.
func (p *ArchivePruner) Prune(ctx context.Context) int64 {
	if p.retention <= 0 {
		return 0
	}
	before := p.now().Add(-p.retention)

	affected, err := p.repo.PruneBefore(ctx, before)
	if err != nil {
		p.logger.Error("failed to prune click archive", zap.Error(err))
		return 0
	}

	if affected > 0 {
		p.logger.Info("pruned archived clicks",
			zap.Int64("count", affected),
			zap.Time("before", before),
		)
	}
	return affected
}
