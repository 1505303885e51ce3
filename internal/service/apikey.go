package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mealforge/mealforge-api/internal/models"
	"github.com/mealforge/mealforge-api/internal/quota"
	"github.com/mealforge/mealforge-api/internal/repository"
	"github.com/mealforge/mealforge-api/internal/storage"
)

type APIKeyService struct {
	repository *repository.APIKeyRepository
	quotas     *repository.QuotaRepository
	redis      *storage.RedisClient
}

func NewAPIKeyService(repo *repository.APIKeyRepository, quotas *repository.QuotaRepository, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{
		repository: repo,
		quotas:     quotas,
		redis:      redis,
	}
}

// Create issues a new key for an identity and assigns that identity's quota
// tier. The plain key is returned once and never stored.
func (s *APIKeyService) Create(ctx context.Context, name, identity, tier string) (string, error) {
	if _, err := quota.ParseTier(tier); err != nil {
		return "", err
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	key := "mf_" + base64.URLEncoding.EncodeToString(keyBytes)

	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := models.APIKey{
		KeyHash:  keyHash,
		Name:     name,
		Identity: identity,
		Tier:     tier,
		IsActive: true,
	}

	if err := s.repository.Create(ctx, &apiKey); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	// Key creation doubles as tier assignment for the owning identity.
	if err := s.quotas.SetTier(ctx, identity, tier); err != nil {
		return "", fmt.Errorf("failed to assign tier: %w", err)
	}

	return key, nil
}

// Validate resolves a plain key to its record, via a short-lived cache.
func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	cacheKey := fmt.Sprintf("apikey:cache:%s", keyHash)
	cached, err := s.redis.Get(ctx, cacheKey)

	if err == nil && cached != "" {
		var apiKey models.APIKey
		if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
			return &apiKey, nil
		}
	}

	apiKey, err := s.repository.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}

	if apiKey == nil {
		return nil, nil
	}

	apiKeyJSON, _ := json.Marshal(apiKey)
	s.redis.Set(ctx, cacheKey, apiKeyJSON, 5*time.Minute)

	return apiKey, nil
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repository.List(ctx)
}

// Update applies field changes; a tier change propagates to the owning
// identity's quota record and drops the cached key.
func (s *APIKeyService) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	tier, hasTier := updates["tier"]
	_, hasActive := updates["is_active"]

	if hasTier {
		tierStr, ok := tier.(string)
		if !ok {
			return fmt.Errorf("tier must be a string")
		}
		if _, err := quota.ParseTier(tierStr); err != nil {
			return err
		}

		apiKey, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if apiKey != nil {
			if err := s.quotas.SetTier(ctx, apiKey.Identity, tierStr); err != nil {
				return err
			}
		}
	}

	if hasTier || hasActive {
		s.invalidateCache(ctx, id)
	}

	return s.repository.Update(ctx, id, updates)
}

func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	s.invalidateCache(ctx, id)

	return s.repository.Delete(ctx, id)
}

func (s *APIKeyService) UpdateLastUsed(ctx context.Context, id uuid.UUID) {
	s.repository.UpdateLastUsed(ctx, id)
}

func (s *APIKeyService) invalidateCache(ctx context.Context, id string) {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil || apiKey == nil {
		return
	}

	s.redis.Del(ctx, fmt.Sprintf("apikey:cache:%s", apiKey.KeyHash))
}
