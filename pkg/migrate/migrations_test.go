package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mydentalfly/quote-backend/pkg/migrate"
)

func TestQuoteTablesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "postgres", "*_create_quote_tables.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no quote tables migration found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS treatments",
		"CREATE TABLE IF NOT EXISTS promo_codes",
		"CHECK (used_count >= 0)",
		"included_treatments TEXT[] NOT NULL",
		"payload JSONB NOT NULL",
		"CONSTRAINT quote_submissions_quote_key_key UNIQUE (quote_key)",
		"DROP TABLE IF EXISTS quote_submissions",
	}
	for _, sub := range checks {
		assert.Contains(t, content, sub)
	}
}

func TestValidateDirAcceptsBothDialects(t *testing.T) {
	require.NoError(t, migrate.ValidateDir(filepath.Join("migrations", "postgres")))
	require.NoError(t, migrate.ValidateDir(filepath.Join("migrations", "sqlite")))
}

func TestEmbeddedDialectsStayInStep(t *testing.T) {
	pg, err := migrate.EmbeddedFiles(migrate.DialectPostgres)
	require.NoError(t, err)
	lite, err := migrate.EmbeddedFiles(migrate.DialectSQLite)
	require.NoError(t, err)
	require.Len(t, lite, len(pg))
	for i := range pg {
		assert.Equal(t, filepath.Base(pg[i]), filepath.Base(lite[i]))
	}
}

func TestUpEmbeddedSeedsSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.UpEmbedded(context.Background(), sqlDB, migrate.DialectSQLite))

	var price int64
	require.NoError(t, sqlDB.QueryRow(`SELECT price_gbp FROM treatments WHERE id = 'dental_implant_standard'`).Scan(&price))
	assert.Equal(t, int64(875), price)

	var included string
	require.NoError(t, sqlDB.QueryRow(`SELECT included_treatments FROM treatment_packages WHERE id = 'implant-duo'`).Scan(&included))
	assert.True(t, strings.HasPrefix(included, "{dental_implant_standard"))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, migrate.DialectSQLite, migrate.DialectFor("sqlite"))
	assert.Equal(t, migrate.DialectPostgres, migrate.DialectFor("postgres"))
	assert.Equal(t, migrate.DialectPostgres, migrate.DialectFor(""))
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644))
	assert.Error(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	root := t.TempDir()
	paths, err := migrate.CreateSQLMigration(root, "Add Clinic Offers!")
	require.NoError(t, err)
	require.Len(t, paths, len(migrate.Dialects))

	version := strings.SplitN(filepath.Base(paths[0]), "_", 2)[0]
	for _, p := range paths {
		assert.True(t, strings.HasSuffix(p, "_add_clinic_offers.sql"), p)
		assert.True(t, strings.HasPrefix(filepath.Base(p), version+"_"), "dialects share one version")
	}
	for _, dialect := range migrate.Dialects {
		require.NoError(t, migrate.ValidateDir(filepath.Join(root, filepath.FromSlash(migrate.EmbeddedDir(dialect)))))
	}
}
