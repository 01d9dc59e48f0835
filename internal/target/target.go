package target

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"strconv"
	"strings"

	"github.com/projectdiscovery/mapcidr"
)

// DefaultPrefix is the prefix length applied to a bare address.
const DefaultPrefix = 24

var (
	// ErrInvalidRange is returned when the input is not an IPv4 address or
	// an IPv4 CIDR block.
	ErrInvalidRange = errors.New("invalid IPv4 address or CIDR range")

	// ErrInvalidPort is returned when a port is not a number in 1..65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")
)

// Normalize returns input as a CIDR block. A bare IPv4 address gets
// defaultPrefix appended.
func Normalize(input string, defaultPrefix int) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidRange)
	}
	if defaultPrefix < 0 || defaultPrefix > 32 {
		return "", fmt.Errorf("%w: prefix /%d", ErrInvalidRange, defaultPrefix)
	}

	if !strings.Contains(input, "/") {
		input = input + "/" + strconv.Itoa(defaultPrefix)
	}

	prefix, err := netip.ParsePrefix(input)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, input)
	}
	if !prefix.Addr().Is4() {
		return "", fmt.Errorf("%w: %q is not IPv4", ErrInvalidRange, input)
	}

	return prefix.Masked().String(), nil
}

// blockBits is the prefix length of the blocks a range is enumerated in.
const blockBits = 16

// Enumerate returns every address of cidr in ascending order. The sequence
// can be ranged over more than once.
//
// Ranges wider than /16 are streamed one /16 block at a time. When the
// caller stops early, only the rest of the current block is drained, at
// most 65536 addresses, however large the range is.
func Enumerate(cidr string) (iter.Seq[string], error) {
	prefix, err := parsePrefix(cidr)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		for block := range blocks(prefix) {
			ips, err := mapcidr.IPAddressesAsStream(block.String())
			if err != nil {
				return
			}
			for ip := range ips {
				if !yield(ip) {
					// Let the producer finish its block so it does not block forever.
					go func() {
						for range ips {
						}
					}()
					return
				}
			}
		}
	}, nil
}

// blocks splits prefix into /16 blocks in ascending order. A prefix of /16
// or longer is its own single block.
func blocks(prefix netip.Prefix) iter.Seq[netip.Prefix] {
	return func(yield func(netip.Prefix) bool) {
		prefix = prefix.Masked()
		if prefix.Bits() >= blockBits {
			yield(prefix)
			return
		}

		b := prefix.Addr().As4()
		base := binary.BigEndian.Uint32(b[:])
		n := uint32(1) << (blockBits - prefix.Bits())
		for i := range n {
			binary.BigEndian.PutUint32(b[:], base+i<<(32-blockBits))
			if !yield(netip.PrefixFrom(netip.AddrFrom4(b), blockBits)) {
				return
			}
		}
	}
}

// parsePrefix parses an IPv4 CIDR block.
func parsePrefix(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil || !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidRange, cidr)
	}
	return prefix, nil
}

// Count returns the number of addresses in cidr.
func Count(cidr string) (uint64, error) {
	if _, err := parsePrefix(cidr); err != nil {
		return 0, err
	}

	n, err := mapcidr.AddressCount(cidr)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	return uint64(n), nil
}

// ParsePort parses a TCP port.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return uint16(n), nil
}

// NormalizeURI makes sure uri starts with a slash. An empty uri is "/".
func NormalizeURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}
