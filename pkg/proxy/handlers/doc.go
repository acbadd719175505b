// Package handlers provides the HTTP handlers of the gateway's API routes.
//
// Every route talks to the assistant backend through a Forwarder (the
// backend gateway), except uploads, which go to object storage:
//
//	POST /api/chat            ChatHandler: streamed relay or JSON mirror
//	GET  /api/upload/status   StatusHandler: mirror, 400 without file_name
//	GET  /api/upload/recent   RecentHandler: mirror
//	POST /api/upload          UploadHandler: multipart "file" to storage
//
// # Streaming
//
// When a chat body sets "stream": true and the backend answers 200, the
// backend's event stream is copied to the client unmodified, flushing after
// every read. Events are never parsed here; clients decode them with the
// stream package. The server write deadline is cleared for the duration of
// the stream.
//
// # Errors
//
// Failures use the backend's error shape:
//
//	{"detail": "The assistant backend is unavailable. Please try again."}
//
// A non-streamed backend response that is not valid JSON becomes a 500.
// Backend error statuses with a JSON body are mirrored as-is.
package handlers
