// Package app wires the frame server together: configuration, logging,
// telemetry, the frame and health services, the HTTP router and the
// server lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from the environment and an optional YAML file
//	2. Initialize logging and OpenTelemetry
//	3. Create the frame service, memory monitor and health service
//	4. Build the chi router and middleware chain
//	5. Start the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run waits for SIGINT or SIGTERM, then ends WebSocket sessions, drains
// in-flight requests, releases the frame caches and flushes telemetry.
// Initialization errors are returned to the caller; the package never
// calls os.Exit.
package app
