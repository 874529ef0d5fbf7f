/*
Package metrics exposes Prometheus metrics for the gateway.

Counters and histograms cover the three hot paths: request primitive
processing (by operation and response status code), router forwarding (by
outcome, plus registrar fallbacks), and notification delivery (by URI scheme
and outcome). ResourcesTotal tracks the size of the resource tree.

The HTTP binding mounts Handler() at /metrics.
*/
package metrics
