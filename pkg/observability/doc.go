/*
Package observability provides tools for monitoring the triage engine.

It turns engine lifecycle hooks into Prometheus metrics and structured log lines,
and lets several hook sets be attached to one engine.
*/
package observability
