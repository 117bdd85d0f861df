// Package handler exposes the HTTP surface. Handlers return errors and leave
// rendering to apperror.HTTPErrorHandler.
package handler

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/auth"
	"github.com/suteetoe/shopdash/internal/repository"
)

// identity returns the caller resolved by the auth middleware
func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.FromEcho(c)
	if !ok || id.TenantID == 0 {
		return auth.Identity{}, apperror.Authentication("authentication required")
	}
	return id, nil
}

// callerTenant returns the caller's tenant id
func callerTenant(c echo.Context) (uint, error) {
	id, err := identity(c)
	if err != nil {
		return 0, err
	}
	return id.TenantID, nil
}

// bind decodes and validates a request body
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.Validation("invalid request body")
	}
	return c.Validate(req)
}

// externalID parses the platform id path parameter
func externalID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("id must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperror.Validation(name + " must be a non-negative integer")
	}
	return v, nil
}

// pageParams reads limit and offset for list routes
func pageParams(c echo.Context) (repository.Page, error) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return repository.Page{}, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return repository.Page{}, err
	}
	return repository.Page{Limit: limit, Offset: offset}, nil
}

// setIf overwrites dst when a partial update supplied a value
func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// BranchChecker confirms branch ownership before a write references it
type BranchChecker interface {
	HasBranch(ctx context.Context, tenantID, branchID uint) (bool, error)
}

// checkBranch rejects a branch_id outside the tenant. Missing and foreign ids get the same answer.
func checkBranch(ctx context.Context, branches BranchChecker, tenantID uint, branchID *uint) error {
	if branchID == nil {
		return nil
	}
	ok, err := branches.HasBranch(ctx, tenantID, *branchID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Validation("branch_id does not match a branch of this tenant")
	}
	return nil
}
