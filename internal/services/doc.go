// Package services implements the business logic behind the HTTP and
// WebSocket surfaces. Handlers stay thin: they decode, validate and render,
// while services own engine state, caching and telemetry.
//
// # Services
//
//	FrameService   analyze CSV, generate frames, diagnostics, cache control
//	HealthService  liveness, readiness and version reporting
//
// # Frame processors
//
// FrameService keeps one optimized processor per distinct engine
// configuration, keyed by EngineConfig.Key. A processor caches the
// transformed series of the last input it saw and every frame sequence it
// produced for it, so a renderer asking again for the same data at another
// duration only pays for frame generation. The number of live processors is
// bounded; the least recently used one is dropped first.
//
// With caching disabled every request builds a fresh frames.Processor.
//
// # Context
//
// Every method takes a context.Context. Generation stops between frame
// batches once the context is done, and spans are started from it.
package services
