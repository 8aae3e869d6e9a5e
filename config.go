package regionmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/idle"
	"github.com/hupe1980/regionmap/internal/region"
	"github.com/hupe1980/regionmap/wait"
)

// Kinds of backing file a Config can describe.
const (
	KindFixed      = "fixed"
	KindExpandable = "expandable"
	KindReadOnly   = "readonly"
	KindRolled     = "rolled"
)

// Config describes a Mapper in a JSON file. Comments and trailing commas
// are allowed.
//
//	{
//	  // a rolled writer with 1MiB regions
//	  "kind": "rolled",
//	  "path": "/var/lib/app/stream",
//	  "mode": "rw",
//	  "region_size": 1048576,
//	  "file_size": 67108864,
//	  "async": true,
//	  "max_wait": "2s",
//	}
type Config struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	// Mode is "r", "rw" or "rw-clear".
	Mode       string `json:"mode,omitempty"`
	RegionSize int64  `json:"region_size"` //nolint:tagliatelle // snake_case for config file
	// FileSize is the size of a fixed file, the size of each rolled file or
	// the maximum size of an expandable file.
	FileSize int64 `json:"file_size,omitempty"`

	CacheSize int  `json:"cache_size,omitempty"`
	MapAhead  *int `json:"map_ahead,omitempty"`

	Async     bool   `json:"async,omitempty"`
	MaxWait   string `json:"max_wait,omitempty"`
	MapIdle   string `json:"map_idle,omitempty"`
	UnmapIdle string `json:"unmap_idle,omitempty"`

	MemoryLimit        int64  `json:"memory_limit,omitempty"`
	IOLimit            int64  `json:"io_limit,omitempty"`
	Pretouch           *bool  `json:"pretouch,omitempty"`
	FilesToCreateAhead int    `json:"files_to_create_ahead,omitempty"`
	Advice             string `json:"advice,omitempty"`
}

// DefaultConfig returns the configuration defaults, without a path.
func DefaultConfig() Config {
	return Config{
		Kind:       KindExpandable,
		RegionSize: 1 << 20,
		CacheSize:  DefaultCacheSize,
	}
}

// LoadConfig reads a config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses JSON with comments on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := DefaultConfig()
	dec := json.NewDecoder(strings.NewReader(string(standardized)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields that do not need the file system.
func (c Config) Validate() error {
	var errs []error

	switch c.Kind {
	case KindFixed, KindExpandable, KindReadOnly, KindRolled:
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", c.Kind))
	}
	if c.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	mode, err := c.mode()
	if err != nil {
		errs = append(errs, err)
	}
	if c.Kind == KindReadOnly && mode.Writable() {
		errs = append(errs, fmt.Errorf("kind %s cannot use mode %s", c.Kind, mode))
	}
	if !region.IsPowerOfTwo(c.RegionSize) {
		errs = append(errs, fmt.Errorf("region_size %d is not a power of two", c.RegionSize))
	}
	if c.CacheSize <= 0 || !region.IsPowerOfTwo(int64(c.CacheSize)) {
		errs = append(errs, fmt.Errorf("cache_size %d is not a power of two", c.CacheSize))
	}
	if c.FileSize < 0 {
		errs = append(errs, fmt.Errorf("file_size %d is negative", c.FileSize))
	}
	if c.Kind == KindRolled && c.RegionSize > 0 && (c.FileSize <= 0 || c.FileSize%c.RegionSize != 0) {
		errs = append(errs, fmt.Errorf("file_size %d must be a positive multiple of region_size", c.FileSize))
	}
	if c.Kind == KindFixed && mode.Writable() && c.FileSize <= 0 {
		errs = append(errs, errors.New("file_size is required for a fixed writer"))
	}
	if _, err := c.policy(); err != nil {
		errs = append(errs, err)
	}
	for _, name := range []string{c.MapIdle, c.UnmapIdle} {
		if name == "" {
			continue
		}
		if _, err := idle.Parse(name); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := ParseAdvice(c.Advice); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// mode defaults to read-only for the readonly kind and read-write otherwise.
func (c Config) mode() (filemap.Mode, error) {
	if c.Mode == "" {
		if c.Kind == KindReadOnly {
			return filemap.ReadOnly, nil
		}
		return filemap.ReadWrite, nil
	}
	return filemap.ParseMode(c.Mode)
}

func (c Config) policy() (wait.Policy, error) {
	if c.MaxWait == "" {
		return wait.Default(), nil
	}
	d, err := time.ParseDuration(c.MaxWait)
	if err != nil {
		return wait.Policy{}, fmt.Errorf("max_wait: %w", err)
	}
	if d == 0 {
		return wait.NoWait(), nil
	}
	p := wait.Spin(d)
	return p, p.Validate()
}

// Options translates the config into Mapper options. Explicit options
// passed to FromConfig are applied after these.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := []Option{WithCacheSize(c.CacheSize)}
	if c.MapAhead != nil {
		opts = append(opts, WithMapAhead(*c.MapAhead))
	}
	if c.Async {
		p, _ := c.policy()
		opts = append(opts, WithAsync(nil, nil, p))
		mapIdle, unmapIdle := idle.MappingFactory, idle.UnmappingFactory
		if c.MapIdle != "" {
			mapIdle, _ = idle.Parse(c.MapIdle)
		}
		if c.UnmapIdle != "" {
			unmapIdle, _ = idle.Parse(c.UnmapIdle)
		}
		opts = append(opts, WithIdleStrategies(mapIdle, unmapIdle))
	}
	if c.MemoryLimit > 0 {
		opts = append(opts, WithMemoryLimit(c.MemoryLimit))
	}
	if c.IOLimit > 0 {
		opts = append(opts, WithIOLimit(c.IOLimit))
	}
	if c.Pretouch != nil {
		opts = append(opts, WithPretouch(*c.Pretouch))
	}
	if c.FilesToCreateAhead > 0 {
		opts = append(opts, WithFilesToCreateAhead(c.FilesToCreateAhead))
	}
	if c.Kind == KindExpandable && c.FileSize > 0 {
		opts = append(opts, WithMaxFileSize(c.FileSize))
	}
	a, _ := ParseAdvice(c.Advice)
	if a != AdviceNone {
		opts = append(opts, WithAdvice(a))
	}
	return opts, nil
}

// FromConfig opens the Mapper a Config describes.
func FromConfig(c Config, opts ...Option) (*Mapper, error) {
	base, err := c.Options()
	if err != nil {
		return nil, err
	}
	opts = append(base, opts...)
	mode, _ := c.mode()

	switch c.Kind {
	case KindFixed:
		return OpenFixed(c.Path, c.FileSize, mode, c.RegionSize, opts...)
	case KindExpandable:
		return OpenExpandable(c.Path, mode, c.RegionSize, opts...)
	case KindReadOnly:
		return OpenReadOnly(c.Path, c.RegionSize, opts...)
	default:
		return OpenRolled(c.Path, c.FileSize, mode, c.RegionSize, opts...)
	}
}

// ParseAdvice parses "", "none", "sequential", "random" or "willneed".
func ParseAdvice(s string) (Advice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "normal":
		return AdviceNone, nil
	case "sequential", "seq":
		return AdviceSequential, nil
	case "random":
		return AdviceRandom, nil
	case "willneed", "will-need":
		return AdviceWillNeed, nil
	default:
		return AdviceNone, fmt.Errorf("unknown advice %q", s)
	}
}
