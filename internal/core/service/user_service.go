package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/port"
)

type UserService struct {
	users    port.UserRepository
	cache    port.CacheRepository
	cacheTTL time.Duration
}

func NewUserService(users port.UserRepository, cache port.CacheRepository, cacheTTL time.Duration) *UserService {
	return &UserService{users: users, cache: cache, cacheTTL: cacheTTL}
}

func (s *UserService) Create(ctx context.Context, name, email string) (*domain.User, error) {
	user := domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	cacheDelete(ctx, s.cache, userCacheKey(user.ID))
	return &user, nil
}

func (s *UserService) FindOne(ctx context.Context, id string) (*domain.User, error) {
	var cached domain.User
	if cacheGetJSON(ctx, s.cache, userCacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	cacheSetJSON(ctx, s.cache, userCacheKey(id), user, s.cacheTTL)
	return user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetUserByEmail(ctx, email)
}
