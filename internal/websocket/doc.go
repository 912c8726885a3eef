// Package websocket streams generated frames to a renderer over a gorilla
// WebSocket connection.
//
// A client sends a generate message carrying the same body as
// POST /api/v1/frames. The server answers with one frames message per
// batch, then a complete message with the series metadata. Failures are
// reported as an error message and the connection stays open for the next
// request.
//
//	-> {"type":"generate","batch_size":100,"request":{...}}
//	<- {"type":"frames","batch":0,"frames":[...]}
//	<- {"type":"frames","batch":1,"frames":[...]}
//	<- {"type":"complete","series":{"total_frames":250,...}}
//
// Heartbeat messages are accepted and ignored. The server pings every
// pingPeriod and drops peers that stop answering.
package websocket
