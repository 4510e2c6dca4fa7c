// Package steamid parses legacy STEAM_X:Y:Z identifiers and converts them to SteamID64.
package steamid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// individualBase is the SteamID64 of account 0 in the public universe.
const individualBase uint64 = 76561197960265728

// ErrInvalid is returned for strings that are not STEAM_X:Y:Z identifiers.
var ErrInvalid = errors.New("invalid steam id")

// SteamID is a legacy textual Steam account identifier STEAM_X:Y:Z.
type SteamID struct {
	Account  uint32 // Z
	Universe uint8  // X
	Parity   uint8  // Y
}

// Parse decodes "STEAM_X:Y:Z" with X in 0..5 and Y in 0..1.
func Parse(s string) (SteamID, error) {
	rest, ok := strings.CutPrefix(s, "STEAM_")
	if !ok {
		return SteamID{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return SteamID{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}

	x, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || x > 5 {
		return SteamID{}, fmt.Errorf("%w: universe in %q", ErrInvalid, s)
	}

	y, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || y > 1 {
		return SteamID{}, fmt.Errorf("%w: parity in %q", ErrInvalid, s)
	}

	z, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return SteamID{}, fmt.Errorf("%w: account in %q", ErrInvalid, s)
	}

	return SteamID{Universe: uint8(x), Parity: uint8(y), Account: uint32(z)}, nil
}

// String formats the id back to STEAM_X:Y:Z.
func (id SteamID) String() string {
	return fmt.Sprintf("STEAM_%d:%d:%d", id.Universe, id.Parity, id.Account)
}

// SteamID64 returns the 64-bit community id (Z*2 + Y + base).
func (id SteamID) SteamID64() uint64 {
	return uint64(id.Account)*2 + uint64(id.Parity) + individualBase
}

// IsZero reports whether the id is the zero value.
func (id SteamID) IsZero() bool {
	return id == SteamID{}
}
