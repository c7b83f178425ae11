package blog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type DevelopmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rec *types.DevelopmentRecord) (*types.DevelopmentRecord, error)
	GetLatestByPostID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.DevelopmentRecord, error)
	GetByID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.DevelopmentRecord, error)
	Update(ctx context.Context, tx *gorm.DB, postID, recordID uuid.UUID, patch types.DevelopmentPatch) (*types.DevelopmentRecord, error)
	DeleteByPostID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error
}

type developmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDevelopmentRepo(db *gorm.DB, baseLog *logger.Logger) DevelopmentRepo {
	return &developmentRepo{db: db, log: baseLog.With("repo", "DevelopmentRepo")}
}

func (r *developmentRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *developmentRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.DevelopmentRecord) (*types.DevelopmentRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if err := r.tx(tx).WithContext(ctx).Create(rec).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return rec, nil
}

// GetLatestByPostID returns the active record, or nil, nil when there is none.
func (r *developmentRepo) GetLatestByPostID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) (*types.DevelopmentRecord, error) {
	var rec types.DevelopmentRecord
	err := r.tx(tx).WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *developmentRepo) GetByID(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.DevelopmentRecord, error) {
	var rec types.DevelopmentRecord
	err := r.tx(tx).WithContext(ctx).Where("id = ?", recordID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update applies patch as one UPDATE statement and returns the merged row.
// A row that does not belong to postID yields gorm.ErrRecordNotFound.
func (r *developmentRepo) Update(ctx context.Context, tx *gorm.DB, postID, recordID uuid.UUID, patch types.DevelopmentPatch) (*types.DevelopmentRecord, error) {
	db := r.tx(tx).WithContext(ctx)
	cols := patch.Columns()
	cols["updated_at"] = time.Now().UTC()
	if patch.BumpVersion {
		cols["version"] = gorm.Expr("version + 1")
	}
	res := db.Model(&types.DevelopmentRecord{}).
		Where("id = ? AND post_id = ?", recordID, postID).
		Updates(cols)
	if res.Error != nil {
		return nil, mapWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var out types.DevelopmentRecord
	if err := db.Where("id = ?", recordID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *developmentRepo) DeleteByPostID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Where("post_id = ?", postID).Delete(&types.DevelopmentRecord{}).Error
}
