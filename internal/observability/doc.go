// Package observability provides logging and metrics support for the
// bibliometrics comparison service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithComponent(logger, "comparison")
//
// Per-request and per-source fields:
//
//	logger = observability.WithComparisonContext(logger, requestID)
//	observability.WithIdentifierContext(logger, "crossref", "10.1/x").Warn().Msg("...")
//
// # Metrics
//
//	metrics := observability.NewMetrics("bibliometrics")
//	metrics.RecordComparisonStarted(len(ids))
//	metrics.RecordSourceFetch("crossref", 42, 0.8)
//
// # Standard Fields
//
//   - request_id: comparison request identifier
//   - component: comparison, http-server, server, cli
//   - source: upstream source tag (crossref, openalex, ...)
//   - identifier: normalized DOI
//
// All components are safe for concurrent use from multiple goroutines.
package observability
