// Package config provides configuration management for the Labsight gateway.
//
// Configuration is read from a YAML file, completed with defaults, overridden
// from the environment and validated as a whole.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention LABSIGHT_SECTION_FIELD:
//
//   - LABSIGHT_BACKEND_URL overrides backend.url
//   - LABSIGHT_BACKEND_AUTH_MODE overrides backend.auth_mode
//   - LABSIGHT_UPLOAD_BUCKET overrides upload.bucket
//   - LABSIGHT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Singleton Pattern
//
//	if err := config.Initialize("labsight.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Tests should build explicit instances with NewTestConfig instead.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//	  rate_limit:
//	    rules:
//	      /api/chat: 20
//	      /api/upload: 5
//
//	backend:
//	  url: "https://rag-backend.example.run.app"
//	  auth_mode: "id_token"
//
//	upload:
//	  bucket: "labsight-uploads"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
