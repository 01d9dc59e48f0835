// Package config provides configuration structures and utilities for
// KirbyScan: defaults, the configuration file loader, and validation.
//
// A configuration file is YAML. Because YAML is a superset of JSON, a
// config.json written for earlier releases loads unchanged, including its
// "proxy", "hilos" and "ip" keys.
package config
