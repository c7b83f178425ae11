package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/arcblog-backend/internal/data/repos"
	types "github.com/yungbote/arcblog-backend/internal/domain"
	"github.com/yungbote/arcblog-backend/internal/platform/llm"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

// CredentialView is a stored credential without its key.
type CredentialView struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	KeyHint   string    `json:"key_hint"`
	Searches  bool      `json:"searches"`
	Position  int       `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CredentialInput struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// ProviderService manages a user's backend credentials and builds their
// provider registry.
type ProviderService interface {
	List(ctx context.Context, s types.Session) ([]CredentialView, error)
	Put(ctx context.Context, s types.Session, provider string, in CredentialInput) (*CredentialView, error)
	Delete(ctx context.Context, s types.Session, provider string) error
	RegistryFor(ctx context.Context, userID uuid.UUID) (*llm.Registry, error)
}

type providerService struct {
	db      *gorm.DB
	log     *logger.Logger
	creds   repos.ProviderCredentialRepo
	factory *llm.Factory
	now     func() time.Time
}

func NewProviderService(db *gorm.DB, log *logger.Logger, creds repos.ProviderCredentialRepo, factory *llm.Factory) ProviderService {
	return &providerService{
		db:      db,
		log:     log.With("service", "ProviderService"),
		creds:   creds,
		factory: factory,
		now:     time.Now,
	}
}

func (ps *providerService) List(ctx context.Context, s types.Session) ([]CredentialView, error) {
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}
	rows, err := ps.creds.ListByUser(ctx, nil, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("list provider credentials: %w", err)
	}
	out := make([]CredentialView, 0, len(rows))
	for _, c := range rows {
		out = append(out, credentialView(c))
	}
	return out, nil
}

func (ps *providerService) Put(ctx context.Context, s types.Session, provider string, in CredentialInput) (*CredentialView, error) {
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}
	key := llm.NormalizeKey(provider)
	if !llm.IsKnownKey(key) {
		return nil, fmt.Errorf("%w: %q", llm.ErrInvalidProviderKey, provider)
	}
	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	now := ps.now().UTC()
	saved, err := ps.creds.Upsert(ctx, nil, &types.ProviderCredential{
		UserID:    s.UserID,
		Provider:  key,
		APIKey:    apiKey,
		Model:     strings.TrimSpace(in.Model),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("save provider credential: %w", err)
	}
	ps.log.Info("Saved provider credential", "user_id", s.UserID.String(), "provider", key)
	v := credentialView(saved)
	return &v, nil
}

func (ps *providerService) Delete(ctx context.Context, s types.Session, provider string) error {
	if !s.Authenticated() {
		return ErrUnauthenticated
	}
	key := llm.NormalizeKey(provider)
	if !llm.IsKnownKey(key) {
		return fmt.Errorf("%w: %q", llm.ErrInvalidProviderKey, provider)
	}
	ok, err := ps.creds.Delete(ctx, nil, s.UserID, key)
	if err != nil {
		return fmt.Errorf("delete provider credential: %w", err)
	}
	if !ok {
		return ErrCredentialNotFound
	}
	ps.log.Info("Deleted provider credential", "user_id", s.UserID.String(), "provider", key)
	return nil
}

// RegistryFor builds a registry from the user's credentials in configuration
// order. A user without credentials gets an empty registry.
func (ps *providerService) RegistryFor(ctx context.Context, userID uuid.UUID) (*llm.Registry, error) {
	rows, err := ps.creds.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list provider credentials: %w", err)
	}
	creds := make([]llm.Credential, 0, len(rows))
	for _, c := range rows {
		creds = append(creds, llm.Credential{Provider: c.Provider, APIKey: c.APIKey, Model: c.Model})
	}
	return ps.factory.BuildRegistry(creds), nil
}

func credentialView(c *types.ProviderCredential) CredentialView {
	return CredentialView{
		Provider:  c.Provider,
		Model:     c.Model,
		KeyHint:   keyHint(c.APIKey),
		Searches:  c.Provider == llm.KeyPerplexity || c.Provider == llm.KeySerper,
		Position:  c.Position,
		UpdatedAt: c.UpdatedAt,
	}
}

// keyHint shows the last four characters of a key.
func keyHint(apiKey string) string {
	k := strings.TrimSpace(apiKey)
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}
