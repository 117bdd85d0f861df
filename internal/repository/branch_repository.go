package repository

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm/clause"
)

// ListBranches returns a tenant's branches ordered by name
func (s *Store) ListBranches(ctx context.Context, tenantID uint) ([]model.Branch, error) {
	defer prometheus.TrackDBOperation("branch_list")(time.Now())

	var branches []model.Branch
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name, id").Find(&branches).Error; err != nil {
		return nil, storageErr(err)
	}
	return branches, nil
}

// HasBranch reports whether branchID is one of the tenant's branches
func (s *Store) HasBranch(ctx context.Context, tenantID, branchID uint) (bool, error) {
	defer prometheus.TrackDBOperation("branch_exists")(time.Now())

	var count int64
	err := s.db.WithContext(ctx).Model(&model.Branch{}).
		Where("tenant_id = ? AND id = ?", tenantID, branchID).
		Count(&count).Error
	if err != nil {
		return false, storageErr(err)
	}
	return count > 0, nil
}

// CreateBranch inserts a manually managed branch
func (s *Store) CreateBranch(ctx context.Context, branch *model.Branch) error {
	defer prometheus.TrackDBOperation("branch_create")(time.Now())

	return storageErr(s.db.WithContext(ctx).Create(branch).Error)
}

// UpsertBranchByLocation inserts or renames the branch mirroring a platform location
func (s *Store) UpsertBranchByLocation(ctx context.Context, branch *model.Branch) error {
	defer prometheus.TrackDBOperation("branch_upsert")(time.Now())

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "shopify_location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "updated_at"}),
	}).Create(branch).Error
	return storageErr(err)
}
