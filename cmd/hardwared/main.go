// Command hardwared runs the hardware inventory and reconciliation
// service: its REST API, its worker-task reconciler, or a one-shot
// import of pre-existing external inventory, following the
// root-command-plus-subcommand layout of cmd/warren/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/hardwared/pkg/log"
)

// Exit codes per spec §6: 0 success, 1 startup failure, 2 configuration
// error.
const (
	exitSuccess         = 0
	exitStartupFailure  = 1
	exitConfigError     = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor distinguishes a configuration error (flags/config file/
// validation) from a runtime startup failure, so scripts driving this
// binary can tell the two apart without parsing stderr.
func exitCodeFor(err error) int {
	if _, ok := err.(*configError); ok {
		return exitConfigError
	}
	return exitStartupFailure
}

// configError wraps an error that originated from flag parsing, config
// file loading, or Config.Validate, rather than from starting a
// component.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "hardwared",
	Short: "hardwared manages heterogeneous compute hardware inventory",
	Long: `hardwared enrolls, validates, and reconciles hardware inventory
against pluggable downstream drivers (provisioning, reservation,
orchestration, tunneling), exposing a REST API over the result.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (optional)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveAPICmd)
	rootCmd.AddCommand(serveWorkerCmd)
	rootCmd.AddCommand(importCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
