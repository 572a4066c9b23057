/*
Package log provides structured logging built on zerolog: a global
Logger configured once via Init, and component-scoped child loggers via
WithComponent/WithHardwareUUID/WithWorkerType/WithTaskUUID for attaching
context (hardware UUID, worker name, task ID) to every subsequent log
line.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	reconcilerLog := log.WithComponent("reconciler")
	reconcilerLog.Info().Str("hardware_uuid", hw.UUID).Msg("dispatching worker task")

	log.Logger.Error().Err(err).Str("worker", "provisioner").Msg("process call failed")

# Integration points

  - pkg/reconciler: logs tick/chunk dispatch and per-task outcomes
  - pkg/worker: each driver stub logs downstream call failures
  - pkg/api: request logging middleware and auth/policy rejections
  - pkg/config: driver reconfiguration on config file changes

# Conventions

Use Info for normal operation, Warn for recoverable/deferred conditions
(a worker deferring with a reason), Error for failures that surface to
a caller, and Fatal only for unrecoverable startup failures. Never log
sensitive property values (those are masked before they reach this
layer, per pkg/validation's Sensitive field); always use .Err(err)
rather than string-formatting an error into the message.
*/
package log
