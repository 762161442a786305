package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifyTable(t *testing.T) {
	assert.Equal(t, `"olids_uat"."olids_masked"."patient"`, QualifyTable("olids_uat", "olids_masked", "patient"))
	assert.Equal(t, `"db"."sch"."we""ird"`, QualifyTable("db", "sch", `we"ird`), "embedded quotes are doubled")
}

func TestQualifySchema(t *testing.T) {
	assert.Equal(t, `"olids_uat"."terminology"`, QualifySchema("olids_uat", "terminology"))
}

func TestBuildDSNDefaults(t *testing.T) {
	t.Setenv("DATAMEDIC_WAREHOUSE_PASSWORD", "")
	t.Setenv("PGPASSWORD", "")

	dsn := buildDSN(ConnectParams{
		Host:     "warehouse.example",
		User:     "dq_runner",
		Database: "olids_uat",
	})
	assert.Equal(t, "host=warehouse.example port=5432 dbname=olids_uat sslmode=require user=dq_runner", dsn)
}

func TestBuildDSNPasswordFromEnvironment(t *testing.T) {
	t.Setenv("DATAMEDIC_WAREHOUSE_PASSWORD", "")
	t.Setenv("PGPASSWORD", "fallback")

	dsn := buildDSN(ConnectParams{Host: "h", Database: "db"})
	assert.Contains(t, dsn, "password=fallback")

	t.Setenv("DATAMEDIC_WAREHOUSE_PASSWORD", "primary")
	dsn = buildDSN(ConnectParams{Host: "h", Database: "db"})
	assert.Contains(t, dsn, "password=primary")
	assert.NotContains(t, dsn, "fallback")
}

func TestDSNValueQuoting(t *testing.T) {
	assert.Equal(t, "plain", dsnValue("plain"))
	assert.Equal(t, "'two words'", dsnValue("two words"))
	assert.Equal(t, `'it\'s'`, dsnValue("it's"))
	assert.Equal(t, "''", dsnValue(""))
}

func TestCollapseWhitespace(t *testing.T) {
	query := `
		SELECT COUNT(*)
		FROM t
		WHERE a IS NULL`
	assert.Equal(t, "SELECT COUNT(*) FROM t WHERE a IS NULL", collapseWhitespace(query))
}
