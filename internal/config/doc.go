// Package config loads application settings and validates per-request
// engine configuration.
//
// # Configuration Sources
//
// Application settings are loaded in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML file (BARRACE_CONFIG_FILE, or config.yaml / configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables use the BARRACE_ prefix:
//
//	BARRACE_SERVER_PORT=8080
//	BARRACE_LOGGING_LEVEL=debug
//	BARRACE_CACHE_MEMORY_CEILING_MB=1024
//	BARRACE_ENGINE_FPS=60
//
// # Engine Configuration
//
// EngineConfig describes one processor: the date and value columns, the
// date format, the interpolation method, fps and the number of ranked items
// per frame. It is validated once, at construction:
//
//	cfg, err := config.NewEngineConfig("Date", []string{"A", "B"})
//	if err != nil {
//	    return err // INVALID_CONFIG
//	}
//	smooth := cfg.WithInterpolation(interpolation.MethodSmooth).WithFPS(60)
//
// The With* builders return copies and never share slices with the
// receiver. Callers validate the result before use.
package config
