package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"drowsydetect/pkg/log"
)

// Detection constants. The landmark indices address the 468-point MediaPipe
// face mesh and the ratio formulas depend on their order, so they are not
// configurable.
var (
	LeftEyeIndices  = []int{33, 160, 158, 133, 153, 144}
	RightEyeIndices = []int{362, 385, 387, 263, 373, 380}
	MouthIndices    = []int{78, 308, 13, 14, 17, 82, 87, 317, 314, 402, 317, 324}
)

type Config struct {
	HTTPPort       string `validate:"required"`
	LandmarkWSURL  string `validate:"required"`
	CORSOrigins    string
	MaxMessageSize int    `validate:"gt=0"`
	Environment    string `validate:"oneof=dev test production"`

	EyeARThresh     float64 `validate:"gt=0,lt=1"`
	MouthARThresh   float64 `validate:"gt=0"`
	EyeFrames       int     `validate:"gt=0"`
	MouthFrames     int     `validate:"gt=0"`

	ModelPath string `validate:"required"`
	ModelURLs []string

	CSVLogDir        string
	EnableCSVLogging bool

	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DSNForLog is the DSN with the password masked.
func (c *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info(nil, "no .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LandmarkWSURL:  getEnv("LANDMARK_WS_URL", "ws://localhost:9000/landmarks"),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:5000"),
		MaxMessageSize: getEnvInt("MAX_MESSAGE_SIZE_MB", 10),
		Environment:    getEnv("ENVIRONMENT", "production"),

		EyeARThresh:   getEnvFloat("EYE_AR_THRESH", 0.25),
		MouthARThresh: getEnvFloat("MOUTH_AR_THRESH", 0.5),
		EyeFrames:     getEnvInt("EYE_FRAMES_THRESHOLD", 20),
		MouthFrames:   getEnvInt("MOUTH_FRAMES_THRESHOLD", 35),

		ModelPath: getEnv("MODEL_PATH", "models/face_landmarker.task"),
		ModelURLs: getEnvList("MODEL_URLS", []string{
			"https://storage.googleapis.com/mediapipe-models/vision/face_landmarker/float16/1/face_landmarker.task",
			"https://cdn-lfs.huggingface.co/repos/google/mediapipe-models/face_landmarker.task",
		}),

		CSVLogDir:        getEnv("CSV_LOG_DIR", "session_logs"),
		EnableCSVLogging: getEnvBool("ENABLE_CSV_LOGGING", true),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "drowsydetect"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	if cfg.DBPassword == "" {
		log.Warn(nil, "DB_PASSWORD is not set")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
