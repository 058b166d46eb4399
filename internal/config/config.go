package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/S0me0neR0man/simbook/internal/record"
)

const envPrefix = "SIMBOOK_"

type Config struct {
	GRPCAddr    string     `yaml:"grpc_addr"`
	MetricsAddr string     `yaml:"metrics_addr"` // "" - disable metrics endpoint
	Log         LogConfig  `yaml:"log"`
	Card        CardConfig `yaml:"card"`

	// Restricted file groups need an auth code for writes.
	Restricted []int `yaml:"restricted"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // "" - console only
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

type CardConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`     // pebble only
	Latency time.Duration `yaml:"latency"` // memory only

	// Files are formatted on start, a pebble card keeps the file groups
	// it already holds.
	Files []FileConfig `yaml:"files"`
}

type FileConfig struct {
	FileGroup    int             `yaml:"fg"`
	Size         int             `yaml:"size"`
	RecordLength int             `yaml:"record_length"`
	AuthCode     string          `yaml:"auth_code"`
	Layout       *record.Layout  `yaml:"layout"`
	Seed         []record.Record `yaml:"seed"`
}

// Default a memory card with the usual phonebook files.
func Default() *Config {
	pbr := record.Layout{Groups: []record.Group{
		{Size: 50, Columns: []record.ColumnSpec{
			{Column: record.ColumnEmail, Files: 1, Indirect: true, Slots: 50},
			{Column: record.ColumnNumber, Files: 1},
		}},
		{Size: 50, Columns: []record.ColumnSpec{
			{Column: record.ColumnEmail, Files: 1, Indirect: true, Slots: 25},
		}},
	}}

	return &Config{
		GRPCAddr:    ":3200",
		MetricsAddr: ":9090",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Card: CardConfig{
			Backend: BackendMemory,
			Latency: 20 * time.Millisecond,
			Files: []FileConfig{
				{FileGroup: record.EFAdn, Size: 250, RecordLength: 28},
				{FileGroup: record.EFFdn, Size: 10, RecordLength: 28, AuthCode: "1234"},
				{FileGroup: record.EFSdn, Size: 10, RecordLength: 28},
				{FileGroup: record.EFMsisdn, Size: 2, RecordLength: 28},
				{FileGroup: record.EFMbdn, Size: 4, RecordLength: 28},
				{FileGroup: record.EFPbr, RecordLength: 30, Layout: &pbr},
			},
		},
		Restricted: []int{record.EFFdn},
	}
}

// NewConfig defaults, then the CONFIG file, then SIMBOOK_* environment.
func NewConfig() (*Config, error) {
	return Parse(os.Args[1:])
}

func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("simbook", flag.ContinueOnError)
	file := fs.String("CONFIG", "", "yaml config file")
	grpcAddr := fs.String("GRPC_ADDR", "", "grpc listen address")
	backend := fs.String("CARD_BACKEND", "", "card backend: memory or pebble")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := Load(*file)
	if err != nil {
		return nil, err
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *backend != "" {
		cfg.Card.Backend = *backend
	}
	return cfg, cfg.Validate()
}

// Load reads path over the defaults and applies the environment. An empty
// path means defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"GRPC_ADDR":    &c.GRPCAddr,
		"METRICS_ADDR": &c.MetricsAddr,
		"LOG_LEVEL":    &c.Log.Level,
		"LOG_FILE":     &c.Log.File,
		"CARD_BACKEND": &c.Card.Backend,
		"CARD_DIR":     &c.Card.Dir,
	}
	for name, dst := range str {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "CARD_LATENCY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sCARD_LATENCY: %w", envPrefix, err)
		}
		c.Card.Latency = d
	}
	if v, ok := lookup(envPrefix + "LOG_DEVELOPMENT"); ok {
		c.Log.Development = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc_addr is empty"))
	}

	switch c.Card.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Card.Dir == "" {
			errs = append(errs, errors.New("card.dir is required for the pebble backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("card.backend %q is not memory or pebble", c.Card.Backend))
	}

	seen := make(map[int]bool)
	for _, f := range c.Card.Files {
		if err := f.validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[f.FileGroup] {
			errs = append(errs, fmt.Errorf("file %04X repeated", f.FileGroup))
		}
		seen[f.FileGroup] = true
	}
	for _, fg := range c.Restricted {
		if record.ExtensionFor(fg) < 0 {
			errs = append(errs, fmt.Errorf("restricted: unknown file group %04X", fg))
		}
	}

	return errors.Join(errs...)
}

func (f FileConfig) validate() error {
	if record.ExtensionFor(f.FileGroup) < 0 {
		return fmt.Errorf("file %04X: unknown file group", f.FileGroup)
	}
	if f.RecordLength <= 0 {
		return fmt.Errorf("file %04X: record_length must be > 0", f.FileGroup)
	}
	if record.IsExtended(f.FileGroup) {
		if f.Layout == nil {
			return fmt.Errorf("file %04X: extended file needs a layout", f.FileGroup)
		}
		if err := f.Layout.Validate(); err != nil {
			return fmt.Errorf("file %04X: %w", f.FileGroup, err)
		}
	} else if f.Size <= 0 {
		return fmt.Errorf("file %04X: size must be > 0", f.FileGroup)
	}
	if len(f.Seed) > f.Records() {
		return fmt.Errorf("file %04X: %d seed records for %d", f.FileGroup, len(f.Seed), f.Records())
	}
	return nil
}

// Records number of records of the file.
func (f FileConfig) Records() int {
	if f.Layout != nil {
		return f.Layout.Total()
	}
	return f.Size
}
