package config

import "flag"

// Flags holds command-line overrides registered on a flag set.
type Flags struct {
	config     *string
	debug      *bool
	strict     *bool
	workers    *int
	tolerance  *float64
	indexWidth *int
	logFile    *string
	metrics    *string
}

// RegisterFlags adds the shared configuration flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:     fs.String("config", "", "Path to config file"),
		debug:      fs.Bool("debug", false, "Enable debug logging"),
		strict:     fs.Bool("strict", false, "Fail on dangling references"),
		workers:    fs.Int("workers", 0, "Parallel geometry workers"),
		tolerance:  fs.Float64("tolerance", 0, "Chord tolerance in model units"),
		indexWidth: fs.Int("index-width", 0, "Index width in bits (16 or 32)"),
		logFile:    fs.String("log-file", "", "Write logs to this file"),
		metrics:    fs.String("metrics", "", "Write Prometheus metrics to this textfile"),
	}
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.strict {
		cfg.Loader.Strict = true
	}
	if *f.workers > 0 {
		cfg.Loader.MaxWorkers = *f.workers
	}
	if *f.tolerance > 0 {
		cfg.Loader.Tolerance = *f.tolerance
	}
	if *f.indexWidth > 0 {
		cfg.Loader.IndexWidth = *f.indexWidth
	}
	if *f.logFile != "" {
		cfg.Logging.LogFile = *f.logFile
	}
	if *f.metrics != "" {
		cfg.Metrics.Textfile = *f.metrics
	}
}
