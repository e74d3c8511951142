package kin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/syssam/kin/dialect"
	sqld "github.com/syssam/kin/dialect/sql"
)

// Duration is a time.Duration that unmarshals from YAML strings like "200ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("kin: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// FieldConfig declares one column of an explicitly configured table.
type FieldConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Config is the YAML configuration for a Database. Tables declared here
// skip catalog introspection entirely.
type Config struct {
	Dialect   string                   `yaml:"dialect"`
	DSN       string                   `yaml:"dsn"`
	CacheTTL  Duration                 `yaml:"cache_ttl"`
	SlowQuery Duration                 `yaml:"slow_query"`
	Tables    map[string][]FieldConfig `yaml:"tables"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kin: reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("kin: parsing config: %w", err)
	}
	return &cfg, nil
}

// Apply registers the configured table declarations.
func (db *Database) Apply(cfg *Config) {
	for name, fields := range cfg.Tables {
		cols := make([]dialect.Column, len(fields))
		for i, f := range fields {
			cols[i] = dialect.Column{Name: f.Name, Type: f.Type}
		}
		db.Register(name, cols)
	}
}

// OpenConfig opens a Database from a YAML configuration file. A non-zero
// cache_ttl enables the in-memory result cache unless an option installs
// another one; a non-zero slow_query wraps the driver with the debug
// instrumentation at that threshold.
func OpenConfig(path string, opts ...Option) (*Database, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	drv, err := sqld.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := New(drv, opts...)
	if err != nil {
		return nil, err
	}
	// Wrapped after the options run so a WithSlog logger reaches the
	// slow-query reports.
	if cfg.SlowQuery > 0 {
		db.drv = sqld.Debug(db.drv,
			sqld.WithSlowThreshold(time.Duration(cfg.SlowQuery)),
			sqld.WithLogger(db.log))
	}
	if db.cache == nil && cfg.CacheTTL > 0 {
		db.cache = NewMemoryCache()
		db.cacheTTL = time.Duration(cfg.CacheTTL)
	}
	db.Apply(cfg)
	return db, nil
}

// WatchConfig reloads the table declarations whenever the configuration
// file changes. Dialect and DSN changes are ignored; only declarations are
// re-applied. The returned stop function releases the watcher.
func (db *Database) WatchConfig(ctx context.Context, path string) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("kin: watching config: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("kin: watching config: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					db.log.WarnContext(ctx, "config reload failed",
						slog.String("path", path), slog.Any("error", err))
					continue
				}
				db.Apply(cfg)
				db.log.InfoContext(ctx, "config reloaded", slog.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				db.log.WarnContext(ctx, "config watcher error",
					slog.String("path", path), slog.Any("error", err))
			}
		}
	}()
	return watcher.Close, nil
}
