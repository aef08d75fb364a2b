package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEmbedded(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(embedded, embeddedDir+"/*_"+suffix)
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one migration ending in %s", suffix)
	b, err := fs.ReadFile(embedded, matches[0])
	require.NoError(t, err)
	return string(b)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded())
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readEmbedded(t, "create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT ux_orders_payment_reference UNIQUE (payment_reference)",
		"version BIGINT NOT NULL DEFAULT 1",
		"CHECK (fulfilment_status IN ('PAID', 'PACKAGING_SUBMITTED', 'PACKAGING_VERIFIED', 'LABEL_CREATED', 'SHIPPED', 'DELIVERED', 'COMPLETED'))",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		assert.Contains(t, content, sub)
	}
}

func TestSentEmailsMigrationIsKeyedByTypeAndReference(t *testing.T) {
	content := readEmbedded(t, "create_order_events_and_sent_emails.sql")
	assert.Contains(t, content, "CONSTRAINT ux_sent_emails_type_reference UNIQUE (email_type, reference_id)")
	assert.Contains(t, content, "REFERENCES orders(id) ON DELETE CASCADE")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Box Fees!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_box_fees.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "Add Box Fees!", now)
	assert.Error(t, err)

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateDirReadsFilesAtRoot(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_first.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260102000000_second.sql"), body, 0o644))
	require.NoError(t, ValidateDir(dir))
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid migration filename"))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_missing_down.sql"), []byte("-- +goose Up\n"), 0o644))
	assert.Error(t, ValidateDir(dir))
}
