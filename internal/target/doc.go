// Package target turns command-line input into scan targets.
//
// A range is an IPv4 address or CIDR block. A bare address is widened to a
// default prefix, so "192.168.1.1" scans the whole 192.168.1.0/24 network.
// Every address of a block is yielded, network and broadcast included.
package target
