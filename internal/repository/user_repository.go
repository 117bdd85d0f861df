package repository

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
)

// ErrEmailTaken is returned when registering an email that already has an account
var ErrEmailTaken = apperror.Validation("email already registered")

// FindUserByEmail returns the account for an email
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("user_find")(time.Now())

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, lookupErr("user", err)
	}
	return &user, nil
}

// CreateUser inserts an account
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("user_create")(time.Now())

	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return storageErr(err)
}
