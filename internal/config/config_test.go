package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
primary:
  env: local
server:
  port: "9000"
database:
  driver: sqlite
  path: ":memory:"
observability:
  logging:
    level: debug
    format: console
    slow_query_threshold: 250ms
grids:
  invoices:
    table:
      from: invoices i LEFT JOIN customers c ON c.id = i.customer_id
      fields:
        id: i.id
        paid: i.paid
        customer__name: c.name
        customer__email: c.email
      default_order: id
    column_remapping:
      - customer: [customer.name, customer.email]
    additional_columns: [customer.email]
    coercion:
      enabled: true
      columns: [paid]
    max_length: 100
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Primary.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
	assert.Equal(t, "development", cfg.Observability.Environment)
	assert.False(t, cfg.Observability.NewRelicEnabled())
	assert.Empty(t, cfg.Grids)
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Server.ReadTimeout, "defaults survive for keys the file omits")
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Observability.Environment)
	assert.Equal(t, 250*time.Millisecond, cfg.Observability.Logging.SlowQueryThreshold)

	grid, ok := cfg.Grids["invoices"]
	require.True(t, ok)
	assert.Equal(t, "c.name", grid.Table.Fields["customer__name"])
	assert.Equal(t, "id", grid.Table.DefaultOrder)

	opts, err := grid.Options()
	require.NoError(t, err)
	fields, ok := opts.Remapping.Lookup("customer")
	require.True(t, ok)
	assert.Equal(t, []string{"customer__name", "customer__email"}, fields)
	assert.Equal(t, []string{"customer.email"}, opts.AdditionalColumns)
	assert.Equal(t, 100, opts.MaxLength)
	require.NotNil(t, opts.Coercion)
	assert.Equal(t, []string{"paid"}, opts.Coercion.Columns)

	v, ok := opts.Coercion.Apply("paid", "yes")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("DATATABLES_SERVER__PORT", "9100")
	t.Setenv("DATATABLES_SERVER__CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv(ConfigFileEnvVar, writeConfig(t, sampleYAML))

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Contains(t, cfg.Grids, "invoices")
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown driver": `
database:
  driver: oracle
`,
		"postgres without host": `
database:
  driver: postgres
  name: app
  user: app
  port: 5432
`,
		"bad log level": `
observability:
  logging:
    level: loud
`,
		"grid without fields": `
grids:
  broken:
    table:
      from: invoices
`,
		"bad remapping": `
grids:
  broken:
    table:
      from: invoices
      fields:
        id: id
    column_remapping:
      - customer: 3
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCoercionEnabledByDefault(t *testing.T) {
	opts, err := GridConfig{}.Options()
	require.NoError(t, err)
	require.NotNil(t, opts.Coercion)
	assert.Empty(t, opts.Coercion.Columns)

	v, ok := opts.Coercion.Apply("customer__name", "no")
	assert.True(t, ok)
	assert.False(t, v)

	disabled := false
	opts, err = GridConfig{Coercion: CoercionConfig{Enabled: &disabled}}.Options()
	require.NoError(t, err)
	assert.Nil(t, opts.Coercion)
}

func TestLoadConfigCoercionCanBeDisabled(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
grids:
  customers:
    table:
      from: customers
      fields:
        id: id
        name: name
    coercion:
      enabled: false
`))
	require.NoError(t, err)

	opts, err := cfg.Grids["customers"].Options()
	require.NoError(t, err)
	assert.Nil(t, opts.Coercion)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.read_timeout", envKey("DATATABLES_SERVER__READ_TIMEOUT"))
	assert.Equal(t, "observability.new_relic.license_key", envKey("DATATABLES_OBSERVABILITY__NEW_RELIC__LICENSE_KEY"))
}
