// =============================================================================
// 📦 ModelMesh 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Federation: DefaultFederationConfig(),
		Search:     DefaultSearchConfig(),
		Router:     DefaultRouterConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		MaxBodyBytes:    8 << 20, // 8 MB
	}
}

// DefaultFederationConfig 返回默认联邦聚合配置
func DefaultFederationConfig() FederationConfig {
	return FederationConfig{
		StalenessThreshold: 5 * time.Minute,
		Quorum:             1,
		RoundInterval:      time.Minute,
		EvictionInterval:   30 * time.Second,
	}
}

// DefaultSearchConfig 返回默认架构搜索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		PopulationSize:   20,
		SurvivorRatio:    0.5,
		CrossoverRate:    0.7,
		GeneMutationRate: 0.2,
		Workers:          4,
		Seed:             0,
		NoiseStdDev:      1.0,
		Interval:         2 * time.Minute,
	}
}

// DefaultRouterConfig 返回默认专家路由配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ScoreThreshold:     0.1,
		MaxExperts:         3,
		DefaultExpertID:    "general",
		FallbackConfidence: 0.3,
		FuzzyDistance:      0,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		SnapshotTTL:  24 * time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（默认不启用历史记录）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "",
		Host:            "localhost",
		Port:            5432,
		User:            "modelmesh",
		Password:        "",
		Name:            "modelmesh",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "modelmesh",
		SampleRate:   0.1,
	}
}
