package logrecv

import (
	"bytes"
	"errors"
	"strings"
)

// Datagram types of the srcds remote log protocol.
const (
	typePlain  = 'R'
	typeSecret = 'S'
)

var (
	// ErrNotLog is returned for datagrams that are not srcds log packets.
	ErrNotLog = errors.New("not a log packet")

	// ErrSecret is returned when the log secret does not match.
	ErrSecret = errors.New("log secret mismatch")
)

var header = []byte{0xff, 0xff, 0xff, 0xff}

// ParsePacket extracts the log line from a datagram. A packet looks like
// FF FF FF FF 'R' "L <line>" or FF FF FF FF 'S' <secret> "L <line>".
// When secret is set only matching 'S' packets are accepted. The returned
// line keeps its "MM/DD/YYYY - HH:MM:SS: " prefix and loses the trailing
// newline and NUL.
func ParsePacket(data []byte, secret string) (string, error) {
	if len(data) < len(header)+1 || !bytes.Equal(data[:len(header)], header) {
		return "", ErrNotLog
	}

	kind := data[len(header)]
	rest := string(data[len(header)+1:])

	switch kind {
	case typePlain:
		if secret != "" {
			return "", ErrSecret
		}
	case typeSecret:
		idx := strings.Index(rest, "L ")
		if idx < 0 {
			return "", ErrNotLog
		}
		if secret != "" && rest[:idx] != secret {
			return "", ErrSecret
		}
		rest = rest[idx:]
	default:
		return "", ErrNotLog
	}

	line, ok := strings.CutPrefix(rest, "L ")
	if !ok {
		return "", ErrNotLog
	}

	return strings.TrimRight(line, "\x00\r\n"), nil
}
