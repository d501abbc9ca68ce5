package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Audit         AuditConfiguration
	Pipeline      PipelineConfiguration
	Risk          RiskConfiguration
	Correlation   CorrelationConfiguration
	Override      OverrideConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr            string
	DefaultCacheTTL string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL     string
	Enabled bool
}

// AuditConfiguration stores audit log storage settings
type AuditConfiguration struct {
	Dir           string
	RetentionDays int
}

// PipelineConfiguration stores the event ingestion pipeline settings
type PipelineConfiguration struct {
	QueueSize          int
	Workers            int
	SubmitTimeout      time.Duration
	DropAlertThreshold int
	DropAlertWindow    time.Duration
}

// RiskConfiguration stores risk scoring settings
type RiskConfiguration struct {
	Blacklist          []string
	Whitelist          []string
	WhitelistCeiling   float64
	RepeatPenalty      float64
	DecayWindow        time.Duration
	AutoBlockThreshold float64
	EscalateThreshold  float64
}

// CorrelationConfiguration stores the default correlation rule settings
type CorrelationConfiguration struct {
	Threshold int
	Window    time.Duration
}

// OverrideConfiguration stores override escalation settings
type OverrideConfiguration struct {
	Window            time.Duration
	EscalateThreshold int
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.defaultCacheTTL", "10m")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("elasticsearch.enabled", false)
	viper.SetDefault("log.dir", "logging")

	viper.SetDefault("audit.dir", "audit-logs")
	viper.SetDefault("audit.retentionDays", 90)

	viper.SetDefault("pipeline.queueSize", 1024)
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.submitTimeout", "250ms")
	viper.SetDefault("pipeline.dropAlertThreshold", 10)
	viper.SetDefault("pipeline.dropAlertWindow", "1m")

	viper.SetDefault("risk.baseScores", map[string]interface{}{
		"failed_authentication": 25.0,
		"permission_denied":     20.0,
		"credential_access":     45.0,
		"network_anomaly":       40.0,
		"plugin_violation":      55.0,
		"sandbox_escape":        85.0,
		"resource_access":       10.0,
	})
	viper.SetDefault("risk.defaultBaseScore", 15.0)
	viper.SetDefault("risk.blacklist", []string{})
	viper.SetDefault("risk.whitelist", []string{})
	viper.SetDefault("risk.whitelistCeiling", 20.0)
	viper.SetDefault("risk.repeatPenalty", 5.0)
	viper.SetDefault("risk.decayWindow", "10m")
	viper.SetDefault("risk.autoBlockThreshold", 90.0)
	viper.SetDefault("risk.escalateThreshold", 75.0)

	viper.SetDefault("correlation.threshold", 5)
	viper.SetDefault("correlation.window", "10m")

	viper.SetDefault("override.window", "1h")
	viper.SetDefault("override.escalateThreshold", 3)

	viper.SetDefault("ratelimit.requests", 100)
	viper.SetDefault("ratelimit.duration", "1m")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 retrieves a float64 value from the configuration
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStringSlice retrieves a string list value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// GetFloat64Map retrieves a string-keyed float map from the configuration
func GetFloat64Map(key string) map[string]float64 {
	raw := viper.GetStringMap(key)
	out := make(map[string]float64, len(raw))
	for k := range raw {
		out[k] = viper.GetFloat64(key + "." + k)
	}
	return out
}
