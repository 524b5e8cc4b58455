package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when --config is not
// given.
const DefaultConfigFile = ".track.yaml"

// Highlights names the Neovim highlight groups used for spans.
type Highlights struct {
	Added   string
	Changed string
	Deleted string
}

// Config holds all the settings, from flags layered over the config file.
type Config struct {
	ConfigFile    string
	Extensions    []string
	LookupDirs    []string
	Buffer        bool
	Yes           bool
	AcceptAll     bool
	NoWordSnap    bool
	DiffTimeout   time.Duration
	Highlights    Highlights
	NvimAddress   string
	Baseline      string
	Watch         bool
	WatchDebounce time.Duration
	LogFile       string
	Verbose       bool
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Highlights: Highlights{
			Added:   "DiffAdd",
			Changed: "DiffChange",
			Deleted: "DiffDelete",
		},
		WatchDebounce: 200 * time.Millisecond,
	}
}

// BindFlags defines the persistent flags on fs, storing into cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "Config file (default ./"+DefaultConfigFile+" if present).")
	fs.StringSliceVarP(&cfg.Extensions, "extension", "e", cfg.Extensions, "Filter by extension. Use 'diff' to process only diff blocks (e.g., 'py', 'js', 'diff').")
	fs.StringSliceVarP(&cfg.LookupDirs, "lookup-dir", "d", cfg.LookupDirs, "Directories to resolve file paths against (default: working directory).")
	fs.BoolVarP(&cfg.Buffer, "buffer", "b", cfg.Buffer, "Leave reviewed buffers unsaved in Neovim (buffers are saved by default).")
	fs.BoolVarP(&cfg.Yes, "yes", "y", cfg.Yes, "Create missing directories without asking.")
	fs.BoolVar(&cfg.NoWordSnap, "no-word-snap", cfg.NoWordSnap, "Report replacements at character level instead of whole words.")
	fs.DurationVar(&cfg.DiffTimeout, "diff-timeout", cfg.DiffTimeout, "Bound diff time for very large files (0 computes the exact diff).")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write structured logs to this file.")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Log debug detail (needs --log-file).")
}

// BindNvimFlags defines the flags of the Neovim review.
func BindNvimFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.NvimAddress, "address", cfg.NvimAddress, "Neovim listen address (default $NVIM or $NVIM_LISTEN_ADDRESS).")
	fs.BoolVarP(&cfg.AcceptAll, "accept-all", "a", cfg.AcceptAll, "Accept every proposed change without an interactive review.")
}

// BindReviewFlags defines the flags of the terminal review.
func BindReviewFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Baseline, "baseline", cfg.Baseline, "Review the file against this baseline file instead of an agent proposal.")
	fs.BoolVarP(&cfg.Watch, "watch", "w", cfg.Watch, "Track rewrites of the file on disk while reviewing.")
	fs.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "Quiet time before an on-disk rewrite is picked up.")
}

// fileConfig is the YAML form of Config. Unset keys are nil and leave the
// flag value alone.
type fileConfig struct {
	Extensions    []string `yaml:"extensions"`
	LookupDirs    []string `yaml:"lookup_dirs"`
	Buffer        *bool    `yaml:"buffer"`
	Yes           *bool    `yaml:"yes"`
	WordSnap      *bool    `yaml:"word_snap"`
	DiffTimeout   string   `yaml:"diff_timeout"`
	LogFile       string   `yaml:"log_file"`
	Verbose       *bool    `yaml:"verbose"`
	NvimAddress   string   `yaml:"nvim_address"`
	WatchDebounce string   `yaml:"watch_debounce"`
	Highlights    struct {
		Added   string `yaml:"added"`
		Changed string `yaml:"changed"`
		Deleted string `yaml:"deleted"`
	} `yaml:"highlights"`
}

// Load reads the config file into cfg. Settings whose flag was given on the
// command line keep the flag value. A missing default file is not an error.
func Load(cfg *Config, fs *pflag.FlagSet) error {
	path := cfg.ConfigFile
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return fc.apply(cfg, fs)
}

func (fc *fileConfig) apply(cfg *Config, fs *pflag.FlagSet) error {
	unset := func(flag string) bool {
		return fs == nil || fs.Lookup(flag) == nil || !fs.Changed(flag)
	}

	if fc.Extensions != nil && unset("extension") {
		cfg.Extensions = fc.Extensions
	}
	if fc.LookupDirs != nil && unset("lookup-dir") {
		cfg.LookupDirs = fc.LookupDirs
	}
	if fc.Buffer != nil && unset("buffer") {
		cfg.Buffer = *fc.Buffer
	}
	if fc.Yes != nil && unset("yes") {
		cfg.Yes = *fc.Yes
	}
	if fc.WordSnap != nil && unset("no-word-snap") {
		cfg.NoWordSnap = !*fc.WordSnap
	}
	if fc.Verbose != nil && unset("verbose") {
		cfg.Verbose = *fc.Verbose
	}
	if fc.LogFile != "" && unset("log-file") {
		cfg.LogFile = fc.LogFile
	}
	if fc.NvimAddress != "" && unset("address") {
		cfg.NvimAddress = fc.NvimAddress
	}
	if fc.DiffTimeout != "" && unset("diff-timeout") {
		d, err := time.ParseDuration(fc.DiffTimeout)
		if err != nil {
			return fmt.Errorf("invalid diff_timeout: %w", err)
		}
		cfg.DiffTimeout = d
	}
	if fc.WatchDebounce != "" && unset("watch-debounce") {
		d, err := time.ParseDuration(fc.WatchDebounce)
		if err != nil {
			return fmt.Errorf("invalid watch_debounce: %w", err)
		}
		cfg.WatchDebounce = d
	}
	if fc.Highlights.Added != "" {
		cfg.Highlights.Added = fc.Highlights.Added
	}
	if fc.Highlights.Changed != "" {
		cfg.Highlights.Changed = fc.Highlights.Changed
	}
	if fc.Highlights.Deleted != "" {
		cfg.Highlights.Deleted = fc.Highlights.Deleted
	}
	return nil
}

// Normalize fixes up values after flags and the config file are merged.
func (c *Config) Normalize() {
	for i, ext := range c.Extensions {
		if len(ext) > 0 && ext[0] != '.' {
			c.Extensions[i] = "." + ext
		}
	}
}

// Logger builds the structured logger. Stderr belongs to the terminal UI, so
// without a log file nothing is logged.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.LogFile == "" {
		return zap.NewNop(), nil
	}
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{c.LogFile}
	config.ErrorOutputPaths = []string{c.LogFile}
	if c.Verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
