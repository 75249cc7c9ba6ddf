package repository

import (
	"context"
	"time"

	"github.com/sifan077/GeoLink/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClickArchiveRepository defines the data access contract for archived clicks.
type ClickArchiveRepository interface {
	Save(ctx context.Context, row *model.ClickArchive) error
	MarkDeleted(ctx context.Context, clickID string, at time.Time) error
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

type clickArchiveRepository struct {
	db *gorm.DB
}

// NewClickArchiveRepository returns a GORM-backed ClickArchiveRepository.
func NewClickArchiveRepository(db *gorm.DB) ClickArchiveRepository {
	return &clickArchiveRepository{db: db}
}

// Save is idempotent on click id so redelivered events do not fail.
func (r *clickArchiveRepository) Save(ctx context.Context, row *model.ClickArchive) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

func (r *clickArchiveRepository) MarkDeleted(ctx context.Context, clickID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ClickArchive{}).
		Where("click_id = ?", clickID).
		Update("deleted_at", at).Error
}

func (r *clickArchiveRepository) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("clicked_at < ?", before).
		Delete(&model.ClickArchive{})
	return result.RowsAffected, result.Error
}
