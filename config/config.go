// config/config.go
package config

import (
	"log"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Audit         AuditConfiguration
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
	Addr string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// AuditConfiguration stores the audit trail settings
type AuditConfiguration struct {
	Enabled                 bool
	Container               string
	TrackedActions          []string
	ExcludedFields          []string
	ContainerExcludedFields map[string][]string
	ExcludedContainers      []string
	StatusField             string
	PublishedValue          string
	Retention               RetentionConfiguration
	CleanupBatchSize        int
}

// RetentionConfiguration stores the cleanup policy knobs
type RetentionConfiguration struct {
	WindowDays  int
	MinVersions int
	MaxDays     int
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("log.dir", "logging")

	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.container", "audit_logs")
	viper.SetDefault("audit.trackedActions", []string{"create", "update", "delete"})
	viper.SetDefault("audit.excludedFields", []string{})
	viper.SetDefault("audit.containerExcludedFields", map[string][]string{})
	viper.SetDefault("audit.excludedContainers", []string{})
	viper.SetDefault("audit.statusField", "status")
	viper.SetDefault("audit.publishedValue", "published")
	viper.SetDefault("audit.retention.windowDays", 90)
	viper.SetDefault("audit.retention.minVersions", 10)
	viper.SetDefault("audit.retention.maxDays", 365)
	viper.SetDefault("audit.cleanupBatchSize", 1000)

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

// GetStringSlice retrieves a list value from the configuration
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}
