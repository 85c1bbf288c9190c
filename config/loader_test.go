// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.Federation.StalenessThreshold)
	assert.Equal(t, "general", cfg.Router.DefaultExpertID)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

federation:
  staleness_threshold: 2m
  quorum: 3

search:
  population_size: 40
  seed: 42
  workers: 8

router:
  default_expert_id: "generalist"
  max_experts: 2
  fuzzy_distance: 0

redis:
  enabled: true
  addr: "redis.example.com:6379"
  db: 1

database:
  driver: "sqlite"
  name: "history.db"

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)

	assert.Equal(t, 2*time.Minute, cfg.Federation.StalenessThreshold)
	assert.Equal(t, 3, cfg.Federation.Quorum)
	// 未设置的字段保留默认值
	assert.Equal(t, 30*time.Second, cfg.Federation.EvictionInterval)

	assert.Equal(t, 40, cfg.Search.PopulationSize)
	assert.Equal(t, int64(42), cfg.Search.Seed)
	assert.Equal(t, 8, cfg.Search.Workers)
	assert.Equal(t, 0.7, cfg.Search.CrossoverRate)

	assert.Equal(t, "generalist", cfg.Router.DefaultExpertID)
	assert.Equal(t, 2, cfg.Router.MaxExperts)
	assert.Equal(t, 0, cfg.Router.FuzzyDistance)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "history.db", cfg.Database.DSN())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("MODELMESH_SERVER_HTTP_PORT", "7777")
	t.Setenv("MODELMESH_SERVER_API_KEYS", "a, b ,c")
	t.Setenv("MODELMESH_FEDERATION_STALENESS_THRESHOLD", "90s")
	t.Setenv("MODELMESH_SEARCH_CROSSOVER_RATE", "0.6")
	t.Setenv("MODELMESH_SEARCH_SEED", "-7")
	t.Setenv("MODELMESH_ROUTER_DEFAULT_EXPERT_ID", "env-expert")
	t.Setenv("MODELMESH_REDIS_ENABLED", "true")
	t.Setenv("MODELMESH_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Server.APIKeys)
	assert.Equal(t, 90*time.Second, cfg.Federation.StalenessThreshold)
	assert.Equal(t, 0.6, cfg.Search.CrossoverRate)
	assert.Equal(t, int64(-7), cfg.Search.Seed)
	assert.Equal(t, "env-expert", cfg.Router.DefaultExpertID)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
router:
  default_expert_id: "yaml-expert"
  max_experts: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	// 环境变量应该覆盖 YAML
	t.Setenv("MODELMESH_SERVER_HTTP_PORT", "9999")
	t.Setenv("MODELMESH_ROUTER_DEFAULT_EXPERT_ID", "env-expert")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-expert", cfg.Router.DefaultExpertID)
	// YAML 值保留
	assert.Equal(t, 5, cfg.Router.MaxExperts)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYMESH_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYMESH").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("MODELMESH_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODELMESH_SERVER_HTTP_PORT")
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Search.PopulationSize)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("MODELMESH_FEDERATION_QUORUM", "0")

	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "federation.quorum")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad http port", mutate: func(c *Config) { c.Server.HTTPPort = 0 }, wantErr: "invalid HTTP port"},
		{name: "non-positive staleness", mutate: func(c *Config) { c.Federation.StalenessThreshold = 0 }, wantErr: "staleness_threshold"},
		{name: "tiny population", mutate: func(c *Config) { c.Search.PopulationSize = 1 }, wantErr: "population_size"},
		{name: "survivor ratio zero", mutate: func(c *Config) { c.Search.SurvivorRatio = 0 }, wantErr: "survivor_ratio"},
		{name: "crossover rate above one", mutate: func(c *Config) { c.Search.CrossoverRate = 1.5 }, wantErr: "crossover_rate"},
		{name: "fallback confidence too high", mutate: func(c *Config) { c.Router.FallbackConfidence = 0.8 }, wantErr: "fallback_confidence"},
		{name: "missing default expert", mutate: func(c *Config) { c.Router.DefaultExpertID = "" }, wantErr: "default_expert_id"},
		{name: "tls cert without key", mutate: func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, wantErr: "tls_cert_file"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "unsupported database driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DefaultDatabaseConfig()

	d.Driver = "postgres"
	assert.Equal(t, "host=localhost port=5432 user=modelmesh password= dbname=modelmesh sslmode=disable", d.DSN())

	d.Driver = "mysql"
	d.Port = 3306
	assert.Equal(t, "modelmesh:@tcp(localhost:3306)/modelmesh?parseTime=true", d.DSN())

	d.Driver = ""
	assert.Empty(t, d.DSN())
}

func TestMustLoad_PanicsOnBadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("search: {population_size: oops}"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
