package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-reference-pathtracer/pkg/core"
	"github.com/df07/go-reference-pathtracer/pkg/integrator"
	"github.com/df07/go-reference-pathtracer/pkg/renderer"
	"github.com/df07/go-reference-pathtracer/pkg/scene"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "PATHTRACER_"

// Config contains everything needed to render, save and serve images
type Config struct {
	Width        int      `toml:"width"`
	Height       int      `toml:"height"`
	Samples      int      `toml:"samples"` // 0 keeps the scene's value
	Depth        int      `toml:"depth"`   // -1 keeps the scene's value
	Seed         uint64   `toml:"seed"`
	Workers      int      `toml:"workers"` // 0 = use CPU count
	SharedStream bool     `toml:"shared_stream"`
	ToneMap      string   `toml:"tone_map"`
	Integrator   string   `toml:"integrator"`
	OutputDir    string   `toml:"output_dir"`
	PreviewWidth int      `toml:"preview_width"` // 0 disables thumbnails
	ScenesDir    string   `toml:"scenes_dir"`
	ServerAddr   string   `toml:"server_addr"`
	S3           S3Config `toml:"s3"`
}

// S3Config describes where finished renders are uploaded. Uploads are
// disabled while Bucket is empty.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
}

// Enabled reports whether uploads are configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Default returns sensible default values
func Default() Config {
	return Config{
		Width:        400,
		Height:       225, // 16:9 aspect ratio
		Depth:        -1,
		Seed:         42,
		ToneMap:      renderer.ToneMapPBRNeutral,
		Integrator:   integrator.PathTracing,
		OutputDir:    "output",
		PreviewWidth: 0,
		ScenesDir:    "scenes",
		ServerAddr:   ":8080",
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "renders/",
		},
	}
}

// Load layers the configuration sources: defaults, then the TOML file at
// tomlPath, then the dotenv file at envPath, then the process environment.
// Empty paths are skipped and a missing dotenv file is not an error.
func Load(tomlPath, envPath string) (Config, error) {
	cfg := Default()
	if tomlPath != "" {
		if err := cfg.LoadFile(tomlPath); err != nil {
			return cfg, err
		}
	}

	env := map[string]string{}
	if envPath != "" {
		vars, err := godotenv.Read(envPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	err := cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return cfg, err
}

// LoadFile merges the TOML file at path into c. Keys not present in the
// file keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Marshal encodes c as TOML
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// ApplyEnv overrides fields from PATHTRACER_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"WIDTH":         &c.Width,
		"HEIGHT":        &c.Height,
		"SAMPLES":       &c.Samples,
		"DEPTH":         &c.Depth,
		"WORKERS":       &c.Workers,
		"PREVIEW_WIDTH": &c.PreviewWidth,
	}
	strs := map[string]*string{
		"TONE_MAP":      &c.ToneMap,
		"INTEGRATOR":    &c.Integrator,
		"OUTPUT_DIR":    &c.OutputDir,
		"SCENES_DIR":    &c.ScenesDir,
		"SERVER_ADDR":   &c.ServerAddr,
		"S3_ENDPOINT":   &c.S3.Endpoint,
		"S3_REGION":     &c.S3.Region,
		"S3_BUCKET":     &c.S3.Bucket,
		"S3_ACCESS_KEY": &c.S3.AccessKey,
		"S3_SECRET_KEY": &c.S3.SecretKey,
		"S3_PREFIX":     &c.S3.Prefix,
	}

	var errs []error
	for name, field := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*field = n
		}
	}
	for name, field := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}
	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			c.Seed = n
		}
	}
	if v, ok := lookup(EnvPrefix + "SHARED_STREAM"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSHARED_STREAM: %w", EnvPrefix, err))
		} else {
			c.SharedStream = b
		}
	}
	return errors.Join(errs...)
}

// Validate rejects values the renderer cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("image size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Samples < 0 {
		errs = append(errs, fmt.Errorf("samples must not be negative, got %d", c.Samples))
	}
	if c.Depth < -1 {
		errs = append(errs, fmt.Errorf("depth must be -1 (scene value) or more, got %d", c.Depth))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.PreviewWidth < 0 {
		errs = append(errs, fmt.Errorf("preview width must not be negative, got %d", c.PreviewWidth))
	}
	if _, err := renderer.ParseToneMap(c.ToneMap); err != nil {
		errs = append(errs, err)
	}
	if _, err := integrator.New(c.Integrator); err != nil {
		errs = append(errs, err)
	}
	if c.S3.Enabled() && c.S3.Region == "" {
		errs = append(errs, errors.New("s3 region is required when a bucket is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ApplyToScene overrides the scene's sampling settings where configured
func (c Config) ApplyToScene(s *scene.Scene) {
	if c.Samples > 0 {
		s.Samples = c.Samples
	}
	if c.Depth >= 0 {
		s.Depth = c.Depth
	}
}

// RenderOptions builds the renderer options described by c
func (c Config) RenderOptions(logger core.Logger) (renderer.Options, error) {
	toneMap, err := renderer.ParseToneMap(c.ToneMap)
	if err != nil {
		return renderer.Options{}, err
	}
	integ, err := integrator.New(c.Integrator)
	if err != nil {
		return renderer.Options{}, err
	}
	return renderer.Options{
		Workers:      c.Workers,
		TileSize:     renderer.DefaultTileSize,
		Seed:         c.Seed,
		SharedStream: c.SharedStream,
		ToneMap:      toneMap,
		Integrator:   integ,
		Logger:       logger,
	}, nil
}
