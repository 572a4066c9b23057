// Package config implements spec §6's Configuration section: a
// viper/pflag-backed loader producing a validated Config, following the
// IOptions option-group pattern used throughout cloupeer-cloupeer's
// pkg/options (one struct per section, each with AddFlags/Validate).
//
// Load order (lowest to highest precedence): struct defaults, config
// file, environment variables (HARDWARED_ prefix), command-line flags.
// A running serve-worker process can additionally call WatchAndReconfigure
// to live-reload per-driver option groups when the config file changes,
// without restarting the reconciler.
package config
