package config

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Brownie44l1/pneumo-api/internal/model"
	xray "github.com/Brownie44l1/pneumo-api/internal/validator"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warning error"`
	LogFile  string `env:"LOG_FILE"`
	Debug    bool   `env:"DEBUG" env-default:"false"`

	HTTPServer
	Model
	Upload
	Screening

	PredictionThreshold float64  `env:"PREDICTION_THRESHOLD" env-default:"0.5" validate:"gt=0,lt=1"`
	AllowedOrigins      []string `env:"ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

type HTTPServer struct {
	Host            string        `env:"HOST" env-default:"0.0.0.0"`
	Port            int           `env:"PORT" env-default:"5000" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Model struct {
	Path         string `env:"MODEL_PATH" env-default:"model/final_model.onnx" validate:"required"`
	MetadataPath string `env:"MODEL_METADATA_PATH" env-default:"model/model_metadata.json"`
	URL          string `env:"MODEL_URL" validate:"omitempty,url"`
	GDriveID     string `env:"MODEL_GDRIVE_ID"`
	HFRepo       string `env:"MODEL_HF_REPO"`
	HFFile       string `env:"MODEL_HF_FILE" env-default:"final_model.onnx"`
	LibraryPath  string `env:"ONNXRUNTIME_LIB"`
}

type Upload struct {
	MaxContentLength  int64    `env:"MAX_CONTENT_LENGTH" env-default:"16777216" validate:"gt=0"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" env-default:"png,jpg,jpeg" env-separator:"," validate:"min=1,dive,oneof=png jpg jpeg webp bmp"`
}

type Screening struct {
	RequireXray        bool    `env:"REQUIRE_XRAY" env-default:"true"`
	GrayscaleThreshold float64 `env:"GRAYSCALE_THRESHOLD" env-default:"0.95" validate:"gte=0,lte=1"`
	MinConfidence      int     `env:"XRAY_MIN_CONFIDENCE" env-default:"60" validate:"gte=0,lte=100"`
	MaxImagePixels     int64   `env:"MAX_IMAGE_PIXELS" env-default:"89478485" validate:"gte=0"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	for i, ext := range cfg.AllowedExtensions {
		cfg.AllowedExtensions[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (s HTTPServer) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DownloadURL picks the model source: MODEL_URL, then a Google Drive file,
// then a Hugging Face repository. Empty when none is configured.
func (m Model) DownloadURL() string {
	switch {
	case m.URL != "":
		return m.URL
	case m.GDriveID != "":
		return model.GoogleDriveURL(m.GDriveID)
	case m.HFRepo != "":
		return model.HuggingFaceURL(m.HFRepo, m.HFFile)
	}
	return ""
}

func (m Model) Options() model.Options {
	return model.Options{
		ModelPath:    m.Path,
		MetadataPath: m.MetadataPath,
		ModelURL:     m.DownloadURL(),
		LibraryPath:  m.LibraryPath,
	}
}

// Thresholds returns the validator limits with the configured overrides applied.
func (s Screening) Thresholds() xray.Thresholds {
	t := xray.DefaultThresholds()
	t.Grayscale = s.GrayscaleThreshold
	t.MinConfidence = s.MinConfidence
	t.MaxPixels = s.MaxImagePixels
	return t
}
