// Package config loads process configuration from flags, a config file,
// and environment variables via viper/pflag, following the IOptions
// option-group pattern in cloupeer-cloupeer/pkg/options: each section is
// its own struct with AddFlags/Validate, composed into one Config. A
// watched config file reloads driver option groups without a restart
// (spec §6 Configuration), using fsnotify the way viper wires it
// internally.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/log"
)

// IOptions is implemented by every configuration section: it can register
// its own flags on a shared FlagSet and validate itself after loading.
type IOptions interface {
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
	Validate() []error
}

var _ IOptions = (*WorkerOptions)(nil)
var _ IOptions = (*APIOptions)(nil)
var _ IOptions = (*DatabaseOptions)(nil)

// WorkerOptions is the `[worker]` section (spec §6).
type WorkerOptions struct {
	TaskPoolSize               int `json:"task-pool-size" mapstructure:"task-pool-size"`
	TaskConcurrency            int `json:"task-concurrency" mapstructure:"task-concurrency"`
	ProcessPendingTaskInterval int `json:"process-pending-task-interval" mapstructure:"process-pending-task-interval"`
}

// NewWorkerOptions returns defaults per spec §6.
func NewWorkerOptions() *WorkerOptions {
	return &WorkerOptions{
		TaskPoolSize:               1000,
		TaskConcurrency:            1000,
		ProcessPendingTaskInterval: 60,
	}
}

func (o *WorkerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.TaskPoolSize, "worker.task-pool-size", o.TaskPoolSize, "Size of the bounded worker pool dispatching Process calls.")
	fs.IntVar(&o.TaskConcurrency, "worker.task-concurrency", o.TaskConcurrency, "Maximum tasks dispatched per chunk within a reconciler tick.")
	fs.IntVar(&o.ProcessPendingTaskInterval, "worker.process-pending-task-interval", o.ProcessPendingTaskInterval, "Seconds between automatic ProcessPending ticks.")
}

func (o *WorkerOptions) Validate() []error {
	var errs []error
	if o.TaskPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.task-pool-size must be positive, got %d", o.TaskPoolSize))
	}
	if o.TaskConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.task-concurrency must be positive, got %d", o.TaskConcurrency))
	}
	if o.ProcessPendingTaskInterval <= 0 {
		errs = append(errs, fmt.Errorf("worker.process-pending-task-interval must be positive, got %d", o.ProcessPendingTaskInterval))
	}
	return errs
}

// APIOptions is the `[api]` section (spec §6).
type APIOptions struct {
	HostIP       string `json:"host-ip" mapstructure:"host-ip"`
	Port         int    `json:"port" mapstructure:"port"`
	MaxLimit     int    `json:"max-limit" mapstructure:"max-limit"`
	APIWorkers   int    `json:"api-workers" mapstructure:"api-workers"`
	EnableSSLAPI bool   `json:"enable-ssl-api" mapstructure:"enable-ssl-api"`
}

// NewAPIOptions returns defaults per spec §6.
func NewAPIOptions() *APIOptions {
	return &APIOptions{
		HostIP:       "0.0.0.0",
		Port:         6385,
		MaxLimit:     1000,
		APIWorkers:   4,
		EnableSSLAPI: false,
	}
}

func (o *APIOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.HostIP, "api.host-ip", o.HostIP, "Bind address for the REST API.")
	fs.IntVar(&o.Port, "api.port", o.Port, "Bind port for the REST API.")
	fs.IntVar(&o.MaxLimit, "api.max-limit", o.MaxLimit, "Maximum page size for list endpoints.")
	fs.IntVar(&o.APIWorkers, "api.api-workers", o.APIWorkers, "Number of API server worker goroutine groups.")
	fs.BoolVar(&o.EnableSSLAPI, "api.enable-ssl-api", o.EnableSSLAPI, "Serve the REST API over TLS.")
}

func (o *APIOptions) Validate() []error {
	var errs []error
	if err := validateAddress(fmt.Sprintf("%s:%d", o.HostIP, o.Port)); err != nil {
		errs = append(errs, err)
	}
	if o.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("api.max-limit must be positive, got %d", o.MaxLimit))
	}
	if o.APIWorkers <= 0 {
		errs = append(errs, fmt.Errorf("api.api-workers must be positive, got %d", o.APIWorkers))
	}
	return errs
}

// DatabaseOptions is the `[database]` section (spec §6).
type DatabaseOptions struct {
	Connection string `json:"connection" mapstructure:"connection"`
}

// NewDatabaseOptions returns defaults: a bbolt file under the working
// directory, matching the teacher's own data-dir default in cmd/warren.
func NewDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{Connection: "./hardwared-data"}
}

func (o *DatabaseOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Connection, "database.connection", o.Connection, "Data directory (or connection URL) for the store.")
}

func (o *DatabaseOptions) Validate() []error {
	var errs []error
	if strings.TrimSpace(o.Connection) == "" {
		errs = append(errs, fmt.Errorf("database.connection must not be empty"))
	}
	return errs
}

// Config is the fully assembled, validated process configuration (spec
// §6 Configuration). It is read-only once returned from Load.
type Config struct {
	Host                 string   `json:"host" mapstructure:"host"`
	EnabledHardwareTypes []string `json:"enabled-hardware-types" mapstructure:"enabled-hardware-types"`
	EnabledWorkerTypes   []string `json:"enabled-worker-types" mapstructure:"enabled-worker-types"`

	Worker   WorkerOptions   `json:"worker" mapstructure:"worker"`
	API      APIOptions      `json:"api" mapstructure:"api"`
	Database DatabaseOptions `json:"database" mapstructure:"database"`

	// driverGroups holds the raw per-driver config sections (spec §6
	// "per-driver config groups declared by the driver via RegisterOpts"),
	// keyed by driver.OptsAware.OptGroup(). Populated from whatever
	// top-level keys in the config file/flags aren't one of the groups
	// above.
	driverGroups map[string]map[string]any
}

// New returns a Config populated with every section's defaults.
func New() *Config {
	return &Config{
		Host:     defaultHost(),
		Worker:   *NewWorkerOptions(),
		API:      *NewAPIOptions(),
		Database: *NewDatabaseOptions(),
	}
}

func defaultHost() string {
	name, err := os.Hostname()
	if err == nil && name != "" {
		return name
	}
	return "localhost"
}

// AddFlags registers every section's flags plus the top-level keys onto
// fs, following cloupeer's IOptions.AddFlags(fs, prefixes...) signature.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "Node identifier for this process.")
	fs.StringSliceVar(&c.EnabledHardwareTypes, "enabled-hardware-types", c.EnabledHardwareTypes, "Hardware type names to enable (empty = all registered).")
	fs.StringSliceVar(&c.EnabledWorkerTypes, "enabled-worker-types", c.EnabledWorkerTypes, "Worker names to enable (empty = all registered).")
	c.Worker.AddFlags(fs)
	c.API.AddFlags(fs)
	c.Database.AddFlags(fs)
}

// Validate runs every section's Validate and collects the results,
// mirroring cloupeer's per-option-group Validate() []error idiom.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.Worker.Validate()...)
	errs = append(errs, c.API.Validate()...)
	errs = append(errs, c.Database.Validate()...)
	return errs
}

// DriverGroup returns the raw configuration section registered for the
// given OptGroup name, or nil if none was supplied.
func (c *Config) DriverGroup(name string) map[string]any {
	return c.driverGroups[name]
}

func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("invalid address %q: missing port", addr)
	}
	return nil
}

// Load reads configuration from (in ascending priority) defaults, an
// optional config file at path, environment variables prefixed
// HARDWARED_, and already-parsed flags, then validates the result. An
// empty path skips file loading. Grounded on the teacher's cobra-driven
// flag parsing in cmd/warren/main.go, generalized to viper so config
// files and env vars participate too (teacher reads flags only).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("hardwared")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.driverGroups = collectDriverGroups(v)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}
	return cfg, nil
}

// WatchAndReconfigure watches path for changes and re-applies every
// OptsAware worker's Configure with its refreshed section on write,
// logging and ignoring reload errors so a bad edit never kills a running
// process (spec §6 "per-driver config groups"; pattern mirrors viper's
// own fsnotify-backed WatchConfig, generalized here to also dispatch to
// driver.OptsAware workers instead of only refreshing in-process fields).
func WatchAndReconfigure(path string, registry *driver.Registry) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	logger := log.WithComponent("config")
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info().Str("file", e.Name).Msg("config file changed, reconfiguring drivers")
		for _, name := range registry.WorkerNames() {
			w, ok := registry.Worker(name)
			if !ok {
				continue
			}
			oa, ok := w.(driver.OptsAware)
			if !ok {
				continue
			}
			section := v.GetStringMap(oa.OptGroup())
			if len(section) == 0 {
				continue
			}
			if err := oa.Configure(section); err != nil {
				logger.Error().Err(err).Str("driver", name).Msg("failed to reconfigure driver")
			}
		}
	})
	v.WatchConfig()
	return nil
}

// ApplyDriverOpts calls Configure once at startup on every registered
// worker that implements OptsAware, using the config's collected
// per-driver sections (spec §6 "per-driver config groups declared by the
// driver via RegisterOpts").
func ApplyDriverOpts(cfg *Config, registry *driver.Registry) error {
	for _, name := range registry.WorkerNames() {
		w, ok := registry.Worker(name)
		if !ok {
			continue
		}
		oa, ok := w.(driver.OptsAware)
		if !ok {
			continue
		}
		section := cfg.DriverGroup(oa.OptGroup())
		if section == nil {
			continue
		}
		if err := oa.Configure(section); err != nil {
			return fmt.Errorf("configure driver %s: %w", name, err)
		}
	}
	return nil
}

func collectDriverGroups(v *viper.Viper) map[string]map[string]any {
	known := map[string]bool{
		"host": true, "enabled-hardware-types": true, "enabled-worker-types": true,
		"worker": true, "api": true, "database": true,
	}
	groups := make(map[string]map[string]any)
	for _, key := range v.AllKeys() {
		top := key
		if idx := strings.Index(key, "."); idx >= 0 {
			top = key[:idx]
		}
		if known[top] {
			continue
		}
		if groups[top] == nil {
			section := v.GetStringMap(top)
			if len(section) > 0 {
				groups[top] = section
			}
		}
	}
	return groups
}
