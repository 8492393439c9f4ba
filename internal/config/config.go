package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`

	DatabasePath string `yaml:"database_path"`
	LogDirectory string `yaml:"log_dir"`
	LogLevel     string `yaml:"log_level"`

	EvidenceDirectory     string        `yaml:"evidence_dir"`
	EvidenceBufferLimit   int           `yaml:"evidence_buffer_limit"` // Frames kept per session between flushes
	EvidenceFlushInterval time.Duration `yaml:"evidence_flush_interval"`

	CameraDevice int `yaml:"camera_device"`
	FrameWidth   int `yaml:"frame_width"`
	FrameHeight  int `yaml:"frame_height"`
	FrameRate    int `yaml:"frame_rate"`
	UploadSize   int `yaml:"upload_size"` // Long side of the frame sent for inference
	JPEGQuality  int `yaml:"jpeg_quality"`

	DetectorBackend  string        `yaml:"detector"` // "remote" or "local"
	InferenceURL     string        `yaml:"inference_url"`
	InferenceModel   string        `yaml:"inference_model"`
	InferenceAPIKey  string        `yaml:"inference_api_key"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	ModelPath        string        `yaml:"model_path"`
	ModelConfigPath  string        `yaml:"model_config_path"`

	ConfidenceThreshold float64       `yaml:"confidence_threshold"` // Display filter
	CountMinConfidence  float64       `yaml:"count_min_confidence"` // Tracking/counting filter
	IOUThreshold        float64       `yaml:"iou_threshold"`
	TickInterval        time.Duration `yaml:"tick_interval"`
	FrameRetryDelay     time.Duration `yaml:"frame_retry_delay"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:                  8080,
		Password:              "inventory",
		DatabasePath:          filepath.Join(".", "data", "inventory.db"),
		LogDirectory:          filepath.Join(".", "logs"),
		LogLevel:              "info",
		EvidenceDirectory:     filepath.Join(".", "evidence"),
		EvidenceBufferLimit:   10,
		EvidenceFlushInterval: 30 * time.Second,
		CameraDevice:          0,
		FrameWidth:            640,
		FrameHeight:           480,
		FrameRate:             30,
		UploadSize:            640,
		JPEGQuality:           50,
		DetectorBackend:       "remote",
		InferenceURL:          "https://detect.roboflow.com",
		InferenceModel:        "airost-internship-project/4",
		InferenceTimeout:      30 * time.Second,
		ModelPath:             filepath.Join(".", "models", "frozen_inference_graph.pb"),
		ModelConfigPath:       filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"),
		ConfidenceThreshold:   0.85,
		CountMinConfidence:    0.85,
		IOUThreshold:          0.5,
		TickInterval:          25 * time.Millisecond,
		FrameRetryDelay:       50 * time.Millisecond,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// COUNTER_CONFIG and the environment (a .env file in the working directory is
// read first). Environment values win.
func Load() (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("COUNTER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.Password = getEnv("PASSWORD", c.Password)
	c.DatabasePath = getEnv("DB_PATH", c.DatabasePath)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EvidenceDirectory = getEnv("EVIDENCE_DIR", c.EvidenceDirectory)
	c.EvidenceBufferLimit = getEnvAsInt("EVIDENCE_BUFFER_LIMIT", c.EvidenceBufferLimit)
	c.EvidenceFlushInterval = getEnvAsDuration("EVIDENCE_FLUSH_INTERVAL", c.EvidenceFlushInterval)
	c.CameraDevice = getEnvAsInt("CAMERA_DEVICE", c.CameraDevice)
	c.FrameWidth = getEnvAsInt("FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = getEnvAsInt("FRAME_HEIGHT", c.FrameHeight)
	c.FrameRate = getEnvAsInt("FRAME_RATE", c.FrameRate)
	c.UploadSize = getEnvAsInt("UPLOAD_SIZE", c.UploadSize)
	c.JPEGQuality = getEnvAsInt("JPEG_QUALITY", c.JPEGQuality)
	c.DetectorBackend = getEnv("DETECTOR", c.DetectorBackend)
	c.InferenceURL = getEnv("INFERENCE_URL", c.InferenceURL)
	c.InferenceModel = getEnv("INFERENCE_MODEL", c.InferenceModel)
	c.InferenceAPIKey = getEnv("INFERENCE_API_KEY", c.InferenceAPIKey)
	c.InferenceTimeout = getEnvAsDuration("INFERENCE_TIMEOUT", c.InferenceTimeout)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.ConfidenceThreshold = getEnvAsFloat("CONFIDENCE_THRESHOLD", c.ConfidenceThreshold)
	c.CountMinConfidence = getEnvAsFloat("COUNT_MIN_CONFIDENCE", c.CountMinConfidence)
	c.IOUThreshold = getEnvAsFloat("IOU_THRESHOLD", c.IOUThreshold)
	c.TickInterval = getEnvAsDuration("TICK_INTERVAL", c.TickInterval)
	c.FrameRetryDelay = getEnvAsDuration("FRAME_RETRY_DELAY", c.FrameRetryDelay)
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.IOUThreshold < 0 || c.IOUThreshold >= 1:
		return fmt.Errorf("iou threshold %.2f out of range [0,1)", c.IOUThreshold)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("confidence threshold %.2f out of range [0,1]", c.ConfidenceThreshold)
	case c.CountMinConfidence < 0 || c.CountMinConfidence > 1:
		return fmt.Errorf("count confidence %.2f out of range [0,1]", c.CountMinConfidence)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	case c.InferenceTimeout <= 0:
		return fmt.Errorf("inference timeout must be positive, got %s", c.InferenceTimeout)
	case c.DetectorBackend != "remote" && c.DetectorBackend != "local":
		return fmt.Errorf("unknown detector backend %q", c.DetectorBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("25ms") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
