// Package optimized wraps frame generation with caches for repeated
// requests over the same input.
//
// The Processor keeps:
//
//   - the transformed series of the last input, keyed by a BLAKE2b-256
//     hash of the raw text, so identical text skips parse and transform
//   - generated frame sequences keyed by content hash, duration, fps,
//     interpolation method and top N
//   - an interpolation memo shared by every generation over the same series
//
// Large inputs are parsed in line batches. Heap usage is checked after each
// batch and each batch of generated frames; above the configured ceiling
// the memo is dropped and generation continues. Results are identical with
// or without any cache. Caches live until ClearCaches is called.
package optimized
