/*
Package observability turns bridge lifecycle hooks into Prometheus metrics.

Metrics registers its collectors on its own registry and exposes them with Handler, so
several bridges in one process do not collide. Hooks returns the domain.LifecycleHooks to
pass to opbridge.WithLifecycleHooks.
*/
package observability
