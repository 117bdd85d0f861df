package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists dashboard accounts
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// TenantResolver looks tenants up by id
type TenantResolver interface {
	ResolveByID(ctx context.Context, id uint) (*model.Tenant, error)
}

// TokenIssuer mints session tokens
type TokenIssuer interface {
	GenerateToken(userID uint, email string, tenantID uint, isAdmin bool) (string, error)
}

// AuthHandler registers accounts and issues tokens
type AuthHandler struct {
	users   UserStore
	tenants TenantResolver
	tokens  TokenIssuer
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(users UserStore, tenants TenantResolver, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tenants: tenants, tokens: tokens}
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	StoreID  uint   `json:"store_id" validate:"required"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	TenantID uint   `json:"tenant_id"`
	IsAdmin  bool   `json:"is_admin"`
}

func viewOf(u *model.User) userView {
	return userView{ID: u.ID, Email: u.Email, TenantID: u.TenantID, IsAdmin: u.IsAdmin}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()
	prometheus.RegisterCounter.Inc()

	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := h.tenants.ResolveByID(ctx, req.StoreID); err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			log.Warn("Registration for unknown store", zap.Uint("store_id", req.StoreID))
			prometheus.RecordAuthError("unknown_store")
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return apperror.Wrap(apperror.KindInternal, "registration failed", err)
	}

	user := &model.User{Email: email, PasswordHash: string(hash), TenantID: req.StoreID}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if apperror.KindOf(err) == apperror.KindValidation {
			prometheus.RecordAuthError("email_already_exists")
		}
		return err
	}

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", user.TenantID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registration successful",
		"user":    viewOf(user),
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req LoginRequest
	if err := bind(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return err
	}
	invalid := apperror.Authentication("invalid credentials")

	user, err := h.users.FindUserByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			prometheus.RecordAuthError("user_not_found")
			return invalid
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("invalid_password")
		return invalid
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, user.TenantID, user.IsAdmin)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return apperror.Wrap(apperror.KindInternal, "token error", err)
	}

	log.Info("User logged in", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", user.TenantID))
	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  viewOf(user),
	})
}
