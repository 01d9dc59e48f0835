// Package main provides the entry point for the KirbyScan CLI.
//
// KirbyScan sends one HTTP GET to every address of an IPv4 range and prints
// the response status and page title, optionally through a pool of SOCKS5
// proxies that fails over when a proxy times out.
//
// Usage:
//
//	kirbyscan scan 192.168.1.0/24 8080 /login
//	kirbyscan proxies
//
// See --help for all available options.
package main

func main() {
	Execute()
}
