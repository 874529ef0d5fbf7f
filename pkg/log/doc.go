/*
Package log provides structured logging for the oneM2M gateway using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all gateway packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithCse: Add CSE name context
  - WithRequestID: Add oneM2M request identifier context
  - WithResourceID: Add resource id context

# Usage

Initializing the Logger:

	import "github.com/cuemby/onem2m/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Component Loggers:

	restLog := log.WithComponent("rest")
	restLog.Info().Str("rqi", rqi).Msg("request accepted")

	routerLog := log.WithComponent("router").
		With().Str("cse_id", cseID).Logger()
	routerLog.Warn().Msg("remote CSE unreachable, trying registrar")

Structured Logging:

	log.Logger.Error().
		Err(err).
		Str("resource_id", ri).
		Msg("failed to commit resource tree transaction")

# Integration Points

This package integrates with:

  - pkg/rest: Logs request validation and CRUD outcomes
  - pkg/tree: Logs store transactions and id collisions
  - pkg/router: Logs forwarding decisions and fallback routing
  - pkg/notifier: Logs notification delivery and dropped targets
  - pkg/api: Logs the HTTP binding's request translation

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for consistent error format

Don't:
  - Log subscriber payload content (may carry device data)
  - Use Debug level in production
  - Concatenate strings (use .Str, .Int)
*/
package log
