// Package frames generates ranked frame sequences from category series.
//
// A Processor drives one request through three explicit steps:
//
//	p, _ := frames.NewProcessor(cfg)
//	_ = p.ParseCSV(ctx, content)        // IDLE -> PARSED
//	_ = p.TransformData(ctx)            // PARSED -> TRANSFORMED
//	out, _ := p.GenerateFrameData(ctx, 10) // TRANSFORMED -> FRAMES_GENERATED
//
// Calling a step out of order returns NO_RAW_DATA, NO_PROCESSED_DATA or
// OUT_OF_ORDER_CALL. ParseCSV always starts a new request.
//
// The Generator does the per-frame work: for frame i of n it computes
// progress i/(n-1), interpolates every category at the matching instant,
// ranks the values and keeps the top N. Frames are produced in batches;
// between batches the generator yields the processor and checks ctx.
package frames
