/*
Package monitoring provides Prometheus metrics for the widget backend.

Tracked:

  - HTTP request latency and throughput
  - Session lifecycle (initiated, restored, refused, cleared, errors by stage)
  - Message flow (sent, received, unread gauge)
  - WebSocket connections and frame counts

Usage:

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
