/*
Package resilience provides a circuit breaker guarding the widget's
outbound calls to the REST backend.

States:

  - Closed: normal operation, requests pass through
  - Open: backend unavailable, requests fail immediately
  - Half-Open: probing recovery, limited requests allowed

Transitions:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                      [failure]
	                                           v
	                                         Open

Usage:

	breaker := resilience.New("backend", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(func() error { return client.Call() })
*/
package resilience
