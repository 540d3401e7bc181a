// Package config handles ifctool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/ifcmesh/internal/export"
	"github.com/Faultbox/ifcmesh/pkg/geometry"
	"github.com/Faultbox/ifcmesh/pkg/ifc"
)

// Config holds all tool settings.
type Config struct {
	Loader  LoaderConfig  `yaml:"loader"`
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoaderConfig holds decoding and tessellation settings.
type LoaderConfig struct {
	Tolerance  float64       `yaml:"tolerance"`   // chord flatness in model units
	MaxWorkers int           `yaml:"max_workers"` // 0 = GOMAXPROCS
	Strict     bool          `yaml:"strict"`
	IndexWidth int           `yaml:"index_width"` // 16 or 32
	Timeout    time.Duration `yaml:"timeout"`     // 0 = no limit
	// ExcludeTypes are product types left out of the mesh; [] builds all.
	ExcludeTypes []string `yaml:"exclude_types"`
	// MaxDocumentBytes caps decompressed documents; 0 = 2 GiB.
	MaxDocumentBytes int64 `yaml:"max_document_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // console or json, for the log file
}

// ExportConfig holds mesh export settings.
type ExportConfig struct {
	Format        string  `yaml:"format"` // glb or gltf
	Output        string  `yaml:"output"`
	SmoothEpsilon float32 `yaml:"smooth_epsilon"`
	KeepZUp       bool    `yaml:"keep_z_up"`
}

// MetricsConfig holds metrics output settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // Prometheus textfile path, empty = off
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Loader: LoaderConfig{
			Tolerance:  geometry.DefaultTolerance,
			MaxWorkers: 0,
			Strict:     false,
			IndexWidth: 32,

			ExcludeTypes: ifc.DefaultExcludedTypes(),
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
			Format:  "console",
		},
		Export: ExportConfig{
			Format: "glb",
		},
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Loader.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("loader.tolerance must not be negative, got %g", c.Loader.Tolerance))
	}
	if c.Loader.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("loader.max_workers must not be negative, got %d", c.Loader.MaxWorkers))
	}
	if c.Loader.MaxDocumentBytes < 0 {
		errs = append(errs, fmt.Errorf("loader.max_document_bytes must not be negative, got %d", c.Loader.MaxDocumentBytes))
	}
	if w := c.Loader.IndexWidth; w != 0 && w != 16 && w != 32 {
		errs = append(errs, fmt.Errorf("loader.index_width must be 16 or 32, got %d", w))
	}
	if f := c.Export.Format; f != "glb" && f != "gltf" {
		errs = append(errs, fmt.Errorf("export.format must be glb or gltf, got %q", f))
	}
	if f := c.Logging.Format; f != "" && f != "console" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", f))
	}
	return errors.Join(errs...)
}

// LoadOptions converts the loader section to store load options.
func (c *Config) LoadOptions() ifc.LoadOptions {
	return ifc.LoadOptions{
		Tolerance:  c.Loader.Tolerance,
		MaxWorkers: c.Loader.MaxWorkers,
		Strict:     c.Loader.Strict,
		IndexWidth: c.Loader.IndexWidth,

		ExcludeTypes:    c.Loader.ExcludeTypes,
		MaxDocumentSize: c.Loader.MaxDocumentBytes,
	}
}

// ExportOptions converts the export section to glTF writer options.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		Binary:        c.Export.Format != "gltf",
		SmoothEpsilon: c.Export.SmoothEpsilon,
		KeepZUp:       c.Export.KeepZUp,
	}
}
