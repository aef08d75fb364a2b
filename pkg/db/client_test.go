package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Ref  string `gorm:"uniqueIndex:ux_test_models_ref"`
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Ref: "a", Name: "committed"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Ref: "b", Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIsUniqueViolation_TranslatedSQLite(t *testing.T) {
	conn := newTestDB(t)

	require.NoError(t, conn.Create(&testModel{Ref: "dup"}).Error)
	err := conn.Create(&testModel{Ref: "dup"}).Error

	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "ux_test_models_ref"))
}

func TestIsUniqueViolation_DriverErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_payment_reference"}
	wrapped := fmt.Errorf("insert order: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "ux_orders_payment_reference"))
	assert.False(t, IsUniqueViolation(wrapped, "ux_sent_emails_type_reference"))

	pqErr := &pq.Error{Code: "23505", Constraint: "ux_sent_emails_type_reference"}
	assert.True(t, IsUniqueViolation(pqErr, "ux_sent_emails_type_reference"))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("timeout"), ""))
}

func TestIsNotFound(t *testing.T) {
	conn := newTestDB(t)
	var m testModel
	err := conn.First(&m, "ref = ?", "missing").Error
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}
