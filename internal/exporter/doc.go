// Package exporter writes generated frame sequences to files and streams.
//
// CSVWriter produces the long format used by renderers and spreadsheets,
// one row per ranked item:
//
//	frame,timestamp,rank,category,value
//
// with an optional UTF-8 BOM for Excel. StreamWriter appends frame batches
// as they are generated so large sequences never sit in memory twice.
// WriteJSON emits the full ProcessedSeries document.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("out", logger)
//	err := w.WriteFrames("frames.csv", series, exporter.WriteOptions{BOMPrefix: true})
//
//	err = exporter.Export("out/frames.json", series)
package exporter
