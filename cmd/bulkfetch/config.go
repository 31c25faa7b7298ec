package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/edgar-tools/bulkfetch/pkg/edgar"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// options is the fully resolved CLI configuration. Sources are layered
// as flags > environment > config file > defaults.
type options struct {
	ConfigFile  string
	Dir         string
	Prefix      string
	Start       string
	End         string
	Agent       string
	Rate        float64
	Concurrency int
	Level       string
	Pretty      bool
	MetricsAddr string
}

func defaultOptions() options {
	return options{
		Dir:         "downloads",
		Start:       "1994Q1",
		End:         edgar.QuarterOf(time.Now()).String(),
		Rate:        edgar.DefaultRateLimit,
		Concurrency: 8,
		Level:       "info",
	}
}

// fileConfig is the YAML config file shape. Zero values leave the
// corresponding option untouched.
type fileConfig struct {
	Dir         string  `yaml:"dir"`
	Prefix      string  `yaml:"prefix"`
	Start       string  `yaml:"start"`
	End         string  `yaml:"end"`
	Agent       string  `yaml:"agent"`
	Rate        float64 `yaml:"rate"`
	Concurrency int     `yaml:"concurrency"`
	Level       string  `yaml:"level"`
	Pretty      bool    `yaml:"pretty"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

// resolve parses args on fs and layers the configuration sources.
func resolve(fs *flag.FlagSet, args []string) (options, error) {
	var flagOpts options
	fs.StringVar(&flagOpts.ConfigFile, "config", "", "YAML config file")
	fs.StringVar(&flagOpts.Dir, "dir", "downloads", "download directory")
	fs.StringVar(&flagOpts.Prefix, "prefix", "", "archive name prefix (default: derived from the quarter range)")
	fs.StringVar(&flagOpts.Start, "start", "1994Q1", "first quarter to download, e.g. 2019Q3")
	fs.StringVar(&flagOpts.End, "end", "", "last quarter to download (default: current quarter)")
	fs.StringVar(&flagOpts.Agent, "agent", "", "contact User-Agent sent with every request (required)")
	fs.Float64Var(&flagOpts.Rate, "rate", edgar.DefaultRateLimit, "request ceiling in requests per second")
	fs.IntVar(&flagOpts.Concurrency, "concurrency", 8, "number of parallel download workers")
	fs.StringVar(&flagOpts.Level, "level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&flagOpts.Pretty, "pretty", false, "human-readable console logs instead of JSON")
	fs.StringVar(&flagOpts.MetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics listener (disabled when empty)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	// .env fills gaps in the environment; real environment variables
	// keep precedence because godotenv.Load never overwrites them.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return options{}, fmt.Errorf("loading .env: %w", err)
		}
	}

	opts := defaultOptions()

	configFile := flagOpts.ConfigFile
	if configFile == "" {
		configFile = os.Getenv("BULKFETCH_CONFIG")
	}
	if configFile != "" {
		if err := applyFile(&opts, configFile); err != nil {
			return options{}, err
		}
	}

	if err := applyEnv(&opts); err != nil {
		return options{}, err
	}

	// Flags the user actually passed win over every other source.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			opts.Dir = flagOpts.Dir
		case "prefix":
			opts.Prefix = flagOpts.Prefix
		case "start":
			opts.Start = flagOpts.Start
		case "end":
			opts.End = flagOpts.End
		case "agent":
			opts.Agent = flagOpts.Agent
		case "rate":
			opts.Rate = flagOpts.Rate
		case "concurrency":
			opts.Concurrency = flagOpts.Concurrency
		case "level":
			opts.Level = flagOpts.Level
		case "pretty":
			opts.Pretty = flagOpts.Pretty
		case "metrics-addr":
			opts.MetricsAddr = flagOpts.MetricsAddr
		}
	})

	return opts, nil
}

func applyFile(opts *options, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg fileConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if cfg.Dir != "" {
		opts.Dir = cfg.Dir
	}
	if cfg.Prefix != "" {
		opts.Prefix = cfg.Prefix
	}
	if cfg.Start != "" {
		opts.Start = cfg.Start
	}
	if cfg.End != "" {
		opts.End = cfg.End
	}
	if cfg.Agent != "" {
		opts.Agent = cfg.Agent
	}
	if cfg.Rate != 0 {
		opts.Rate = cfg.Rate
	}
	if cfg.Concurrency != 0 {
		opts.Concurrency = cfg.Concurrency
	}
	if cfg.Pretty {
		opts.Pretty = true
	}
	if cfg.Level != "" {
		opts.Level = cfg.Level
	}
	if cfg.MetricsAddr != "" {
		opts.MetricsAddr = cfg.MetricsAddr
	}
	return nil
}

func applyEnv(opts *options) error {
	if v := os.Getenv("BULKFETCH_DIR"); v != "" {
		opts.Dir = v
	}
	if v := os.Getenv("BULKFETCH_PREFIX"); v != "" {
		opts.Prefix = v
	}
	if v := os.Getenv("BULKFETCH_START"); v != "" {
		opts.Start = v
	}
	if v := os.Getenv("BULKFETCH_END"); v != "" {
		opts.End = v
	}
	if v := os.Getenv("BULKFETCH_AGENT"); v != "" {
		opts.Agent = v
	}
	if v := os.Getenv("BULKFETCH_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BULKFETCH_RATE %q: %w", v, err)
		}
		opts.Rate = rate
	}
	if v := os.Getenv("BULKFETCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BULKFETCH_CONCURRENCY %q: %w", v, err)
		}
		opts.Concurrency = n
	}
	if v := os.Getenv("BULKFETCH_LOG_LEVEL"); v != "" {
		opts.Level = v
	}
	if v := os.Getenv("BULKFETCH_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BULKFETCH_PRETTY %q: %w", v, err)
		}
		opts.Pretty = pretty
	}
	if v := os.Getenv("BULKFETCH_METRICS_ADDR"); v != "" {
		opts.MetricsAddr = v
	}
	return nil
}
