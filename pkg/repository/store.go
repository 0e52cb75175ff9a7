// Package repository holds a generic gorm store for single-table resources
// keyed by an "id" column.
package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentbook/pkg/db/option"
	"gorm.io/gorm"
)

// ErrNoRows is returned by Patch when no row carries the given id.
var ErrNoRows = errors.New("no_rows_affected")

// Store reads and writes rows of T. Match structs follow gorm's struct
// conditions, so zero-valued fields are ignored.
type Store[T any] interface {
	List(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error)
	// Get returns nil and no error when nothing matches.
	Get(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error)
	Insert(ctx context.Context, row *T) error
	Patch(ctx context.Context, id string, changes map[string]any) error
}

type gormStore[T any] struct {
	db *gorm.DB
}

// NewStore binds a Store to db, which may be a transaction.
func NewStore[T any](db *gorm.DB) Store[T] {
	return &gormStore[T]{db: db}
}

func (s *gormStore[T]) List(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error) {
	rows := []*T{}
	if err := s.scoped(ctx, match, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *gormStore[T]) Get(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := s.scoped(ctx, match, opts).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

func (s *gormStore[T]) Insert(ctx context.Context, row *T) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *gormStore[T]) Patch(ctx context.Context, id string, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *gormStore[T]) scoped(ctx context.Context, match *T, opts []option.QueryOption) *gorm.DB {
	stmt := s.db.WithContext(ctx)
	if match != nil {
		stmt = stmt.Where(match)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
