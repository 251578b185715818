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

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	embeddedFiles, err := fs.Glob(embedded, embeddedDir+"/*.sql")
	require.NoError(t, err)
	assert.Len(t, embeddedFiles, len(onDisk))
	assert.NotEmpty(t, embeddedFiles)
}

func TestSchemaCarriesTenantIsolationConstraints(t *testing.T) {
	checks := map[string][]string{
		"*_create_tenants.sql": {
			"CONSTRAINT tenant_domains_hostname_key UNIQUE (hostname)",
			"idx_tenant_domains_one_primary ON tenant_domains (tenant_id) WHERE is_primary",
			"DROP TABLE IF EXISTS tenants",
		},
		"*_create_orders.sql": {
			"CONSTRAINT orders_stripe_session_id_key UNIQUE (stripe_session_id)",
			"FOREIGN KEY (tenant_id) REFERENCES tenants(id)",
			"CHECK (quantity > 0)",
			"DROP TABLE IF EXISTS orders",
		},
		"*_create_catalog.sql": {
			"idx_discount_codes_tenant_code ON discount_codes (tenant_id, code)",
			"DROP TABLE IF EXISTS products",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		content := string(data)
		for _, want := range wants {
			assert.True(t, strings.Contains(content, want), "%s missing %q", matches[0], want)
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Tenant Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_tenant_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsCollisionsAndEmptyNames(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "discount limits", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301090000_discount_limits.sql"), path)

	_, err = createSQLMigrationAt(dir, "discount limits", at)
	require.ErrorContains(t, err, "already exists")

	_, err = createSQLMigrationAt(dir, "!!!", at)
	require.Error(t, err)
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
	assert.Contains(t, err.Error(), "missing \"-- +goose Down\"")
}
