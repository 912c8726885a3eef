package config

import "barrace/pkg/contracts"

const (
	AppName    = "barrace"
	AppVersion = contracts.Version

	// Engine limits
	MinFPS  = 1
	MaxFPS  = 120
	MinTopN = 1
	MaxTopN = 50

	DefaultFPS  = 30
	DefaultTopN = 10

	// Analyzer sampling
	PreviewRows       = 5
	AnalyzerSample    = 100
	NumericColumnRate = 0.8

	// Frame generation
	FrameBatchSize = 100
	// MaxFrames caps ceil(duration × fps) for one request
	MaxFrames = 1_000_000

	// Optimized processor
	DefaultMemoryCeilingMB = 512
	DefaultStreamThreshold = 10000
	DefaultStreamBatchSize = 1000

	// Ranking sorts in parallel chunks above this many items
	ParallelSortThreshold = 4096
)
