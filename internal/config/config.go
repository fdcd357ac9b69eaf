package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Launcher   LauncherConfig
	Barrier    BarrierConfig
	Monitor    MonitorConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Kubernetes KubernetesConfig
	Logger     LoggerConfig
}

// LauncherConfig carries the environment handed down by the cluster
// scheduler plus the toolkit entry point the launcher forwards to.
type LauncherConfig struct {
	EntryPoint   string
	GPUSelector  string
	LogDir       string
	ExperimentID string
	NodeRank     int
	JobID        string
	LocalRank    int
}

type BarrierConfig struct {
	Dir          string
	PollInterval time.Duration
	Timeout      time.Duration
}

type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	Image          string
	JobTTLSeconds  int
}

type LoggerConfig struct {
	Level  string
	Format string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("HARNESS_ENTRYPOINT", "mammoth_train")
	v.SetDefault("CUDA_VISIBLE_DEVICES", "0")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("EXP_ID", "default")
	v.SetDefault("NODE_RANK", 0)
	v.SetDefault("SLURM_JOB_ID", "")
	v.SetDefault("LOCAL_RANK", 0)
	v.SetDefault("BARRIER_DIR", "/tmp")
	v.SetDefault("BARRIER_POLL_INTERVAL", "1s")
	v.SetDefault("BARRIER_TIMEOUT", "30m")
	v.SetDefault("MONITOR_ENABLED", true)
	v.SetDefault("MONITOR_INTERVAL", "5s")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "harness")
	v.SetDefault("DB_PASSWORD", "harness")
	v.SetDefault("DB_NAME", "harness")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("K8S_ENABLED", false)
	v.SetDefault("K8S_IN_CLUSTER", false)
	v.SetDefault("K8S_KUBECONFIG", "")
	v.SetDefault("K8S_NAMESPACE", "training")
	v.SetDefault("K8S_IMAGE", "")
	v.SetDefault("K8S_JOB_TTL_SECONDS", 3600)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "text")

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Launcher: LauncherConfig{
			EntryPoint:   v.GetString("HARNESS_ENTRYPOINT"),
			GPUSelector:  v.GetString("CUDA_VISIBLE_DEVICES"),
			LogDir:       v.GetString("LOG_DIR"),
			ExperimentID: v.GetString("EXP_ID"),
			NodeRank:     v.GetInt("NODE_RANK"),
			JobID:        v.GetString("SLURM_JOB_ID"),
			LocalRank:    v.GetInt("LOCAL_RANK"),
		},
		Barrier: BarrierConfig{
			Dir:          v.GetString("BARRIER_DIR"),
			PollInterval: parseDuration(v.GetString("BARRIER_POLL_INTERVAL"), time.Second),
			Timeout:      parseDuration(v.GetString("BARRIER_TIMEOUT"), 30*time.Minute),
		},
		Monitor: MonitorConfig{
			Enabled:  v.GetBool("MONITOR_ENABLED"),
			Interval: parseDuration(v.GetString("MONITOR_INTERVAL"), 5*time.Second),
		},
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("K8S_ENABLED"),
			InCluster:      v.GetBool("K8S_IN_CLUSTER"),
			KubeConfigPath: v.GetString("K8S_KUBECONFIG"),
			Namespace:      v.GetString("K8S_NAMESPACE"),
			Image:          v.GetString("K8S_IMAGE"),
			JobTTLSeconds:  v.GetInt("K8S_JOB_TTL_SECONDS"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
