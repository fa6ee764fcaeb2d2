package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/reunite/hub/internal/huberrors"
	"github.com/reunite/hub/internal/models"
)

const apiKeyPrefix = "rh_"

// UsersRepository defines the users data access used by the service.
type UsersRepository interface {
	Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
}

// UsersService issues API keys and authenticates requests.
type UsersService struct {
	repo UsersRepository
}

// NewUsersService creates a UsersService.
func NewUsersService(repo UsersRepository) *UsersService {
	return &UsersService{repo: repo}
}

// CreateUser registers a user and returns it with its API key. The key is shown
// once; only its hash is stored.
func (s *UsersService) CreateUser(ctx context.Context, email, name string, isAdmin bool) (*models.User, string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, "", huberrors.NewValidationError("email", "a valid email is required")
	}

	if name == "" {
		return nil, "", huberrors.NewValidationError("name", "name is required")
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, "", err
	}

	user, err := s.repo.Create(ctx, &models.CreateUserRequest{
		Email:      email,
		Name:       name,
		IsAdmin:    isAdmin,
		APIKeyHash: HashAPIKey(key),
	})
	if err != nil {
		return nil, "", err
	}

	return user, key, nil
}

// Authenticate resolves an API key to its user. Unknown keys are NotFoundErrors.
func (s *UsersService) Authenticate(ctx context.Context, apiKey string) (*models.User, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, huberrors.NewNotFoundError("user", "unknown API key")
	}

	return s.repo.GetByAPIKeyHash(ctx, HashAPIKey(apiKey))
}

// HashAPIKey returns the hex SHA-256 of key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}

	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
