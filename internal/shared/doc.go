// Package shared holds helpers used by the tests of several barrace packages.
//
// The testutil subpackage captures slog output so a test can assert on what
// the engine logged, including attributes bound through Logger.With:
//
//	logger, logs := testutil.NewTestLogger(t)
//	p, _ := optimized.NewProcessor(cfg, optimized.Options{Logger: logger})
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "memory ceiling exceeded")
//
// Nothing here is imported by production code.
package shared
