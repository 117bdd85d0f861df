// Package repository holds the tenant-scoped gorm data access layer.
package repository

import (
	"errors"

	"github.com/suteetoe/shopdash/internal/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Store is the persistence store for every tenant-owned table.
// All methods except tenant lookups and global rollups filter by tenant_id.
type Store struct {
	db *gorm.DB
}

// New creates a store over an open gorm connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the connection for read-only aggregate queries
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Page bounds a list query
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q = q.Limit(limit)
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

// upsertSet assigns the given columns from the incoming row. branch_id is only
// replaced when the incoming row names a branch.
func upsertSet(table string, columns []string) clause.Set {
	set := clause.AssignmentColumns(columns)
	return append(set, clause.Assignment{
		Column: clause.Column{Name: "branch_id"},
		Value:  gorm.Expr("COALESCE(EXCLUDED.branch_id, " + table + ".branch_id)"),
	})
}

// newerOrEqual keeps an upsert from overwriting a row with an older platform version
func newerOrEqual(table string) clause.Where {
	return clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: table + ".updated_at <= EXCLUDED.updated_at"},
	}}
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return apperror.Storage(err)
}

func lookupErr(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what + " not found")
	}
	return storageErr(err)
}
