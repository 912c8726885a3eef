// Package http implements the HTTP handlers of the frame server. Handlers
// stay thin: they decode and validate requests, call the frame service and
// render the result.
//
// # Routes
//
//	POST   /api/v1/analyze      detect columns and date format of a CSV (or .xlsx) body
//	POST   /api/v1/frames       generate frames; ?format=csv returns CSV rows
//	GET    /api/v1/diagnostics  parse/transform statistics and cache state
//	DELETE /api/v1/cache        drop cached processors
//	GET    /api/v1/stream       WebSocket that streams frames in batches
//	GET    /api/health[/ready|/live|/detailed], /api/version
//
// # Error Handling
//
// Every failure is rendered as RFC 7807 problem details by
// errors.ErrorHandler. Engine errors keep their code in "error_code":
//
//	{
//	    "type": "/errors/engine/missing-column",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "column \"Revenue\" not found in CSV header",
//	    "error_code": "MISSING_COLUMN"
//	}
package http
