package lkflow

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/esimov/lkflow/utils"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default output parameters.
const (
	DefaultMaxFrames     = 100
	DefaultOutputPattern = "flow_%04d.jpg"
	DefaultQuality       = 90
)

// Config represents the application configuration. It can be loaded from a YAML file
// and overridden by the command line flags.
type Config struct {
	// Input describes the frame sequence.
	Input struct {
		// Dir is the directory holding the input frames.
		Dir string `yaml:"dir" validate:"required"`
		// Pattern is the frame file name, formatted with the frame index.
		Pattern string `yaml:"pattern" validate:"required,framepattern"`
		// Start is the index of the first frame.
		Start int `yaml:"start" validate:"gte=0"`
		// MaxFrames caps the number of processed frames. Zero means no limit.
		MaxFrames int `yaml:"maxFrames" validate:"gte=0"`
	} `yaml:"input"`

	// Output describes the generated flow images.
	Output struct {
		Dir     string `yaml:"dir" validate:"required"`
		Pattern string `yaml:"pattern" validate:"required,framepattern,imageformat"`
		// Quality is the JPEG encoding quality.
		Quality int `yaml:"quality" validate:"min=1,max=100"`
		// GrayDir optionally receives the grayscale intensity of every accepted frame.
		GrayDir string `yaml:"grayDir,omitempty"`
	} `yaml:"output"`

	// Flow holds the Lucas-Kanade parameters.
	Flow struct {
		WindowSize int `yaml:"windowSize" validate:"min=3,oddwindow"`
		// Workers is the number of image rows solved concurrently.
		Workers int `yaml:"workers" validate:"gte=0"`
	} `yaml:"flow"`

	Overlay struct {
		Stride int    `yaml:"stride" validate:"min=1"`
		Color  string `yaml:"color" validate:"required,arrowcolor"`
	} `yaml:"overlay"`

	Verbose bool `yaml:"verbose"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("oddwindow", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 1
	})
	v.RegisterValidation("framepattern", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return strings.Count(p, "%") == 1 && !strings.Contains(fmt.Sprintf(p, 1), "%!")
	})
	v.RegisterValidation("imageformat", func(fl validator.FieldLevel) bool {
		ext := strings.ToLower(filepath.Ext(fl.Field().String()))
		return utils.Contains(SupportedFormats, ext)
	})
	v.RegisterValidation("arrowcolor", func(fl validator.FieldLevel) bool {
		_, err := utils.HexToNRGBA(fl.Field().String())
		return err == nil
	})
	return v
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Dir = "frames_input"
	cfg.Input.Pattern = DefaultInputPattern
	cfg.Input.Start = DefaultStartIndex
	cfg.Input.MaxFrames = DefaultMaxFrames

	cfg.Output.Dir = "frames_output"
	cfg.Output.Pattern = DefaultOutputPattern
	cfg.Output.Quality = DefaultQuality

	cfg.Flow.WindowSize = DefaultWindowSize
	cfg.Flow.Workers = runtime.NumCPU()

	cfg.Overlay.Stride = DefaultStride
	cfg.Overlay.Color = DefaultArrowColor

	return cfg
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
// Values missing from the file keep their default.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
