// Package config defines the environment-variable configuration surface.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	VNC     VNCConfig
	Ports   PortRangeConfig
	Network NetworkConfig
	Redis   RedisConfig
	Pool    PoolConfig
	Reaper  ReaperConfig
	Worker  WorkerConfig
	Metrics MetricsConfig
	Log     LogConfig
	State   StateConfig
}

type ServerConfig struct {
	Addr string
}

type VNCConfig struct {
	Host          string
	Image         string
	ContainerPort int
	AppName       string
	DefaultWidth  string
	DefaultHeight string
}

type PortRangeConfig struct {
	Min int
	Max int
}

type NetworkConfig struct {
	Name   string
	Subnet string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type PoolConfig struct {
	Size int
}

type ReaperConfig struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

type WorkerConfig struct {
	Concurrency int
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
}

type StateConfig struct {
	FilePath string
}

// Load reads the environment-variable configuration surface, applying the
// documented defaults for anything unset.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":" + getEnv("ORCHESTRATOR_PORT", "8080"),
		},
		VNC: VNCConfig{
			Host:          getEnv("VNC_HOST", "localhost"),
			Image:         getEnv("VNC_IMAGE", "vnc-kiosk:latest"),
			ContainerPort: getIntEnv("VNC_CONTAINER_PORT", 6080),
			AppName:       getEnv("VNC_APPNAME", "kiosk"),
			DefaultWidth:  getEnv("VNC_WIDTH", "1280"),
			DefaultHeight: getEnv("VNC_HEIGHT", "720"),
		},
		Ports: PortRangeConfig{
			Min: getIntEnv("PORT_RANGE_MIN", 5000),
			Max: getIntEnv("PORT_RANGE_MAX", 5003),
		},
		Network: NetworkConfig{
			Name:   getEnv("DOCKER_NETWORK_NAME", "vnc_network"),
			Subnet: getEnv("DOCKER_NETWORK_SUBNET", "10.10.0.0/24"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Pool: PoolConfig{
			Size: getIntEnv("WARM_POOL_SIZE", 1),
		},
		Reaper: ReaperConfig{
			Interval:    getDurationEnv("CLEANUP_INTERVAL_MINUTES", "m", 30*time.Minute),
			IdleTimeout: getDurationEnv("IDLE_TIMEOUT_HOURS", "h", 8*time.Hour),
		},
		Worker: WorkerConfig{
			Concurrency: getIntEnv("WORKER_CONCURRENCY", 1),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		State: StateConfig{
			FilePath: getEnv("STATE_FILE", "state.json"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getDurationEnv reads a bare integer env var (as spec.md's
// CLEANUP_INTERVAL_MINUTES/IDLE_TIMEOUT_HOURS are documented) and applies
// the given Go duration unit suffix.
func getDurationEnv(key, unitSuffix string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val + unitSuffix); err == nil {
			return d
		}
	}
	return defaultVal
}
