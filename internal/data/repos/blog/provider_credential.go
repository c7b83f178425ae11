package blog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type ProviderCredentialRepo interface {
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ProviderCredential, error)
	Upsert(ctx context.Context, tx *gorm.DB, cred *types.ProviderCredential) (*types.ProviderCredential, error)
	Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, provider string) (bool, error)
}

type providerCredentialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProviderCredentialRepo(db *gorm.DB, baseLog *logger.Logger) ProviderCredentialRepo {
	return &providerCredentialRepo{db: db, log: baseLog.With("repo", "ProviderCredentialRepo")}
}

// ListByUser returns credentials in configuration order.
func (r *providerCredentialRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ProviderCredential, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProviderCredential
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert replaces the key and model of an existing (user, provider) pair
// in place, or appends a new credential at the end of the order.
func (r *providerCredentialRepo) Upsert(ctx context.Context, tx *gorm.DB, cred *types.ProviderCredential) (*types.ProviderCredential, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out *types.ProviderCredential
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.ProviderCredential
		err := txx.Where("user_id = ? AND provider = ?", cred.UserID, cred.Provider).First(&existing).Error
		switch {
		case err == nil:
			if err := txx.Model(&existing).Updates(map[string]any{
				"api_key": cred.APIKey,
				"model":   cred.Model,
			}).Error; err != nil {
				return err
			}
			existing.APIKey = cred.APIKey
			existing.Model = cred.Model
			out = &existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if cred.ID == uuid.Nil {
			cred.ID = uuid.New()
		}
		cred.Position = 0
		var last types.ProviderCredential
		err = txx.Where("user_id = ?", cred.UserID).Order("position DESC").First(&last).Error
		switch {
		case err == nil:
			cred.Position = last.Position + 1
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if err := txx.Create(cred).Error; err != nil {
			return err
		}
		out = cred
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err)
	}
	return out, nil
}

func (r *providerCredentialRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, provider string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&types.ProviderCredential{})
	return res.RowsAffected > 0, res.Error
}
