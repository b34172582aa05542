// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/facematch/deepface"
)

// FaceEngine holds the settings the evaluator and its backends need.
type FaceEngine struct {
	Engine             string        `envconfig:"FACE_ENGINE" default:"deepface"`
	DeepFaceURL        string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel      string        `envconfig:"DEEPFACE_MODEL" default:"Dlib"`
	DeepFaceDetector   string        `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	DeepFaceTimeout    time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`
	FaceEngineGRPCAddr string        `envconfig:"FACE_ENGINE_GRPC_ADDR" default:"face-engine:50051"`
	DlibModelsDir      string        `envconfig:"DLIB_MODELS_DIR" default:"models"`

	// Face matching
	FaceThreshold      float64 `envconfig:"FACE_THRESHOLD" default:"0.6"`
	FaceMaxFaces       int     `envconfig:"FACE_MAX_FACES" default:"1"`
	FaceMaxDimension   int     `envconfig:"FACE_MAX_DIMENSION" default:"800"`
	FaceRejectMultiple bool    `envconfig:"FACE_REJECT_MULTIPLE" default:"false"`
}

type Config struct {
	// Server
	Environment        string        `envconfig:"ENV" default:"development"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Database
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"host=postgres user=postgres password=postgres dbname=portal port=5432 sslmode=disable"`

	// Redis
	RedisAddr string `envconfig:"REDIS_ADDR" default:"redis:6379"`

	// Sessions
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAudience string        `envconfig:"JWT_AUDIENCE"`
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// Storage
	StorageBackend   string `envconfig:"STORAGE_BACKEND" default:"local"`
	UploadDir        string `envconfig:"UPLOAD_DIR" default:"static/profile_pictures"`
	CloudinaryURL    string `envconfig:"CLOUDINARY_URL"`
	CloudinaryFolder string `envconfig:"CLOUDINARY_FOLDER" default:"profile_pictures"`

	FaceEngine
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or mysql, got %q", c.DBDriver)
	}
	switch c.StorageBackend {
	case "local":
	case "cloudinary":
		if strings.TrimSpace(c.CloudinaryURL) == "" {
			return fmt.Errorf("CLOUDINARY_URL is required for the cloudinary storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or cloudinary, got %q", c.StorageBackend)
	}
	return c.FaceEngine.validate()
}

// LoadFaceEngine reads only the face engine settings.
func LoadFaceEngine() (*FaceEngine, error) {
	var cfg FaceEngine
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load face engine config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load face engine config: %w", err)
	}
	return &cfg, nil
}

func (c *FaceEngine) validate() error {
	switch c.Engine {
	case "deepface", "grpc", "dlib":
	default:
		return fmt.Errorf("FACE_ENGINE must be deepface, grpc or dlib, got %q", c.Engine)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FaceMatch returns the evaluator configuration.
func (c *FaceEngine) FaceMatch() facematch.Config {
	return facematch.Config{
		Threshold:           c.FaceThreshold,
		MaxFaces:            c.FaceMaxFaces,
		MaxDimension:        c.FaceMaxDimension,
		RejectMultipleFaces: c.FaceRejectMultiple,
	}
}

// DeepFace returns the DeepFace client configuration.
func (c *FaceEngine) DeepFace() deepface.Config {
	cfg := deepface.DefaultConfig()
	cfg.BaseURL = c.DeepFaceURL
	cfg.Model = c.DeepFaceModel
	cfg.Detector = c.DeepFaceDetector
	cfg.Timeout = c.DeepFaceTimeout
	return cfg
}
