package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"pgx", &pgconn.PgError{Code: "23505"}, true},
		{"pgx wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgx other", &pgconn.PgError{Code: "23502"}, false},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"pq other", &pq.Error{Code: "42P01"}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsDuplicateObject(t *testing.T) {
	assert.False(t, IsDuplicateObject(nil))
	assert.False(t, IsDuplicateObject(errors.New("boom")))
	assert.True(t, IsDuplicateObject(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, IsDuplicateObject(&pgconn.PgError{Code: "42710"}))
	assert.True(t, IsDuplicateObject(&pq.Error{Code: "42P07"}))
	assert.True(t, IsDuplicateObject(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateObject(&pgconn.PgError{Code: "42P01"}))
}
