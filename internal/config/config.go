// Package config loads runtime settings from the environment.
//
// Values come from KUNDAN_* environment variables, optionally seeded from a
// .env file. Variables already set in the process environment win over the
// file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned when a value cannot be parsed or fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const envPrefix = "KUNDAN_"

// Config holds every tunable of the service.
type Config struct {
	Addr      string `validate:"required"`
	DataDir   string `validate:"required"`
	StaticDir string

	CameraID        int     `validate:"gte=0"`
	FPS             int     `validate:"gte=1,lte=60"`
	MotionThreshold float64 `validate:"gt=0,lte=100"`
	Mirror          bool

	Strategy     string  `validate:"oneof=direct warp gradient segmented"`
	StackSpacing float64 `validate:"gte=0.12,lte=0.15"`

	KeyMode         string  `validate:"oneof=track slot"`
	MaxMissed       int     `validate:"gte=0"`
	AlphaPosition   float64 `validate:"gt=0,lte=1"`
	AlphaSize       float64 `validate:"gt=0,lte=1"`
	AlphaRotation   float64 `validate:"gt=0,lte=1"`
	DetectorHands   int     `validate:"gte=1,lte=2"`
	DetectorMinConf float64 `validate:"gt=0,lte=1"`

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogDir   string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	dataDir := ".kundan"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".kundan")
	}
	return Config{
		Addr:            ":8080",
		DataDir:         dataDir,
		FPS:             15,
		MotionThreshold: 1.0,
		Mirror:          true,
		Strategy:        "segmented",
		StackSpacing:    0.13,
		KeyMode:         "track",
		MaxMissed:       15,
		AlphaPosition:   0.35,
		AlphaSize:       0.25,
		AlphaRotation:   0.35,
		DetectorHands:   2,
		DetectorMinConf: 0.6,
		LogLevel:        "info",
	}
}

// DBPath returns the location of the product catalog database.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "kundan.db")
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads envFile if it exists, then overlays KUNDAN_* variables on the
// defaults. An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	p := parser{lookup: lookup}

	p.str("ADDR", &c.Addr)
	p.str("DATA_DIR", &c.DataDir)
	p.str("WEB_DIR", &c.StaticDir)
	p.integer("CAMERA", &c.CameraID)
	p.integer("FPS", &c.FPS)
	p.float("MOTION_THRESHOLD", &c.MotionThreshold)
	p.boolean("MIRROR", &c.Mirror)
	p.str("STRATEGY", &c.Strategy)
	p.float("STACK_SPACING", &c.StackSpacing)
	p.str("KEY_MODE", &c.KeyMode)
	p.integer("MAX_MISSED", &c.MaxMissed)
	p.float("ALPHA_POSITION", &c.AlphaPosition)
	p.float("ALPHA_SIZE", &c.AlphaSize)
	p.float("ALPHA_ROTATION", &c.AlphaRotation)
	p.integer("DETECTOR_HANDS", &c.DetectorHands)
	p.float("DETECTOR_MIN_CONFIDENCE", &c.DetectorMinConf)
	p.str("LOG_LEVEL", &c.LogLevel)
	p.str("LOG_DIR", &c.LogDir)

	if p.err != nil {
		return Config{}, p.err
	}
	c.Strategy = strings.ToLower(c.Strategy)
	c.KeyMode = strings.ToLower(c.KeyMode)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// parser records the first parse failure and skips the rest.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key, v string, err error) {
	p.err = fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, key, v, err)
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = n
}

func (p *parser) float(key string, dst *float64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = f
}

func (p *parser) boolean(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}
	*dst = b
}
