// Labsight is the chat and upload gateway for the Labsight assistant.
//
// It serves a browser-facing API in front of the retrieval backend:
//   - Streaming chat proxy that relays the backend's event stream
//   - Backend credentials per deployment (identity token, API key or none)
//   - File uploads to object storage and bounded ingestion status polling
//   - Per-client rate limiting, metrics, tracing and health endpoints
//
// Usage:
//
//	# Start the gateway with defaults and LABSIGHT_* environment overrides
//	labsight serve
//
//	# Start with a configuration file
//	labsight serve --config /etc/labsight/config.yaml
//
//	# Ask a question through a running gateway
//	labsight chat "why did the nightly export fail?"
//
//	# Upload files and follow their ingestion
//	labsight upload runbook.md incident.log
//
//	# Show local upload history
//	labsight uploads --output json
package main

func main() {
	Execute()
}
