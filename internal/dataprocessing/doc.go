// Package dataprocessing turns raw tabular text into date-ordered category
// series. It covers the first three stages of frame generation.
//
// # Architecture
//
// 1. Analyzer: infers header presence, the date column, the value columns
// and the date format from a sample of the input
// 2. Parser: splits lines into raw rows keyed by column name, dropping rows
// with the wrong field count or an empty date
// 3. Transformer: parses dates with the configured format, coerces values
// and groups them into one series per value column
//
// A Loader reads CSV files, and XLSX workbooks through excelize, from disk.
//
// # Usage
//
//	meta, err := dataprocessing.NewAnalyzer(logger).Analyze(content)
//	if err != nil {
//	    return err
//	}
//	parser := dataprocessing.NewParser(dataprocessing.ParserOptions{HasHeader: meta.HasHeader, Headers: meta.Columns}, logger)
//	rows, err := parser.Parse(content, meta.DateColumn, meta.ValueColumns)
//	...
//	set, err := dataprocessing.NewTransformer(logger).Transform(rows, meta.DateColumn, meta.DateFormat, meta.ValueColumns)
//
// # Row-Level Problems
//
// Malformed rows never fail a request. They are dropped, counted and the
// first few reasons are kept in the stage statistics (see Parser.Stats and
// Transformer.Stats). Errors are returned only when nothing usable remains.
//
// # Large Inputs
//
// Parser.ParseStream reads lines through a LineBatcher and reports after
// every batch, so callers can check memory or cancellation between batches.
package dataprocessing
