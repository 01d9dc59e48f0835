// Package scanner probes a single target over HTTP.
//
// A Scanner issues a GET to http://address:port/uri, optionally through the
// current proxy of a shared pool, and extracts the page title from the
// response. Only timeouts are retried: a timed-out attempt discards the
// current proxy and tries once more with whatever the pool selects next, or
// directly when the pool is empty. Every other transport error fails the
// target immediately.
package scanner
