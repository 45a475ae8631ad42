package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath          = "config/config.yaml"
	DefaultCentralRegistryURL  = "https://data.fairdatapipeline.org/"
	DefaultReportCacheTTL      = 300 * time.Second
	DefaultFetchTimeout        = 30 * time.Second
	DefaultTracingServiceName  = "data-registry"
	DefaultTracingSampleRate   = 1.0
	DefaultServerPort          = 8000
	DefaultPublicBaseURL       = "http://localhost:8000/"
	DefaultAuthorisedUsersFile = "config/authorised_users.yaml"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Registry RegistryConfig `yaml:"registry"`
	Fetch    FetchConfig    `yaml:"fetch"`
	S3       S3Config       `yaml:"s3"`
	SFTP     SFTPConfig     `yaml:"sftp"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Cache    CacheConfig    `yaml:"cache"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// PublicBaseURL is used when a request carries no usable Host, e.g. from the CLI.
	PublicBaseURL string `yaml:"public_base_url"`
}

type DBConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Timezone string `yaml:"timezone"`
}

type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type RegistryConfig struct {
	CentralRegistryURL string `yaml:"central_registry_url"`
	AuthorisedUserFile string `yaml:"authorised_user_file"`
	// RemoteConfig 远程注册中心的 ini 文件，文件存在即视为 remote registry
	RemoteConfig string `yaml:"remote_config"`
}

type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	TempDir string        `yaml:"temp_dir"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type SFTPConfig struct {
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	// InsecureIgnoreHostKey 关闭主机密钥校验，仅用于测试环境
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key"`
	Timeout               time.Duration `yaml:"timeout"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	FilePath    string  `yaml:"file_path"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type CacheConfig struct {
	// Backend is "redis", "memory" or "none"; empty picks redis when a host is configured.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

var AppConfig *Config

func InitConfig() error {
	return LoadConfig(DefaultConfigPath)
}

// LoadConfig reads the YAML file at path into AppConfig and fills defaults.
func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}
	cfg.applyDefaults()

	AppConfig = cfg
	return nil
}

// Default returns a config with every default filled in and no database configured.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if strings.TrimSpace(c.Server.PublicBaseURL) == "" {
		c.Server.PublicBaseURL = DefaultPublicBaseURL
	}
	if strings.TrimSpace(c.DB.Driver) == "" {
		c.DB.Driver = "mysql"
	}
	if strings.TrimSpace(c.DB.Timezone) == "" {
		c.DB.Timezone = "UTC"
	}
	if strings.TrimSpace(c.Registry.CentralRegistryURL) == "" {
		c.Registry.CentralRegistryURL = DefaultCentralRegistryURL
	}
	if strings.TrimSpace(c.Registry.AuthorisedUserFile) == "" {
		c.Registry.AuthorisedUserFile = DefaultAuthorisedUsersFile
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.SFTP.Port == 0 {
		c.SFTP.Port = 22
	}
	if c.SFTP.Timeout <= 0 {
		c.SFTP.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(c.Tracing.ServiceName) == "" {
		c.Tracing.ServiceName = DefaultTracingServiceName
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = DefaultTracingSampleRate
	}
	if strings.TrimSpace(c.Tracing.Exporter) == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultReportCacheTTL
	}
}
