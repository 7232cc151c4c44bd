// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Widget starting", zap.String("port", "8600"))
//	logger.Error("Session restore failed", zap.Error(err))
package logging
