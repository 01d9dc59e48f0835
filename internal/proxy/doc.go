// Package proxy manages the pool of SOCKS5 proxies that scans are routed through.
//
// A Manager is built once at startup from the configured proxy list. Every
// proxy is probed for liveness before any scan begins, and only reachable
// proxies become active. During the run the pool only ever shrinks: a proxy
// that times out under live traffic is discarded and never selected again.
//
// The Manager is shared by pointer across all scan workers. Reads of the
// current proxy take a read lock; discarding takes the write lock, so a
// reader sees either the state before a discard or the state after it.
package proxy
