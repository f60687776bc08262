package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Data    DataConfig
	Study   StudyConfig
	Queue   QueueConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// DataConfig locates every pipeline input and the directory intermediate
// and final CSVs are written to.
type DataConfig struct {
	RegistryCSV   string // raw disaster registry
	Adm1CSV       string // admin-1 boundary reference table
	Adm2CSV       string // admin-2 boundary reference table
	MetricsDir    string // per-event flood metrics CSVs from the extractor
	GPWSummaryCSV string // population count and area per admin-1
	GDPCSV        string // GDP per admin-1 per year
	PrecipNetCDF  string // daily zonal precipitation means
	OutputDir     string
}

// StudyConfig pins the analysis window and the fixed constants baked into
// the source dataset.
type StudyConfig struct {
	StartYear int
	EndYear   int

	// CPIRatio2024 deflates 2024 nominal damages onto the 2023-adjusted
	// scale the rest of the registry uses (CPI_2024 / CPI_2023).
	CPIRatio2024 float64

	// SatelliteEraStart is the first day with flood mask coverage. Events
	// starting earlier can never have a mask.
	SatelliteEraStart time.Time
}

// QueueConfig throttles submission of extraction jobs against the remote
// task queue's fixed capacity.
type QueueConfig struct {
	BaseURL    string
	Threshold  int
	Backoff    time.Duration
	Workers    int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Data: DataConfig{
			RegistryCSV:   getEnv("REGISTRY_CSV", "./data/registry/floods-2000-2024.csv"),
			Adm1CSV:       getEnv("ADM1_CSV", "./data/boundaries/adm1.csv"),
			Adm2CSV:       getEnv("ADM2_CSV", "./data/boundaries/adm2.csv"),
			MetricsDir:    getEnv("METRICS_DIR", "./data/event_metrics"),
			GPWSummaryCSV: getEnv("GPW_SUMMARY_CSV", "./data/gpw_summary_by_adm1.csv"),
			GDPCSV:        getEnv("GDP_CSV", "./data/gdp_by_adm1.csv"),
			PrecipNetCDF:  getEnv("PRECIP_NETCDF", "./data/zonal_precip.nc"),
			OutputDir:     getEnv("OUTPUT_DIR", "./data/output"),
		},
		Study: StudyConfig{
			StartYear:         getEnvInt("STUDY_START_YEAR", 2000),
			EndYear:           getEnvInt("STUDY_END_YEAR", 2024),
			CPIRatio2024:      getEnvFloat("CPI_RATIO_2024", 1.029495111),
			SatelliteEraStart: time.Date(2000, 2, 25, 0, 0, 0, 0, time.UTC),
		},
		Queue: QueueConfig{
			BaseURL:    getEnv("TASK_QUEUE_URL", "http://localhost:9090"),
			Threshold:  getEnvInt("TASK_QUEUE_THRESHOLD", 290),
			Backoff:    getEnvDuration("TASK_QUEUE_BACKOFF", 15*time.Minute),
			Workers:    getEnvInt("SUBMIT_WORKERS", 2),
			BufferSize: getEnvInt("SUBMIT_BUFFER_SIZE", 20),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/flood-panel.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Study.StartYear > c.Study.EndYear {
		return fmt.Errorf("study start year %d after end year %d", c.Study.StartYear, c.Study.EndYear)
	}
	if c.Study.CPIRatio2024 <= 0 {
		return fmt.Errorf("CPI ratio must be positive, got %f", c.Study.CPIRatio2024)
	}

	if c.Queue.Threshold < 1 {
		return fmt.Errorf("task queue threshold must be at least 1")
	}
	if c.Queue.Backoff < time.Second {
		return fmt.Errorf("task queue backoff must be at least 1 second")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
