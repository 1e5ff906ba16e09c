package domain

import (
	"fmt"
	"strings"
)

// DeviceRole distinguishes the two halves of a physical device setup.
type DeviceRole string

const (
	RoleReceiver    DeviceRole = "receiver"
	RoleTransmitter DeviceRole = "transmitter"
)

// Suffix returns the one-letter role tag used in device identifiers.
func (r DeviceRole) Suffix() string {
	if r == RoleTransmitter {
		return "t"
	}
	return "r"
}

// ParseRole accepts the long role names used in request paths.
func ParseRole(s string) (DeviceRole, error) {
	switch s {
	case "receiver":
		return RoleReceiver, nil
	case "transmitter":
		return RoleTransmitter, nil
	}
	return "", fmt.Errorf("unknown device role %q", s)
}

// DeviceIdentity is an authenticated device: the physical setup's base name
// plus the role it plays. It is parsed once at the authentication boundary
// and threaded through as a typed value.
type DeviceIdentity struct {
	Base string
	Role DeviceRole
}

// ParseDeviceID parses a "base:r" / "base:t" identifier. Anything else,
// including extra separators, yields no identity.
func ParseDeviceID(id string) (DeviceIdentity, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 2 || parts[0] == "" {
		return DeviceIdentity{}, fmt.Errorf("malformed device identifier %q", id)
	}
	switch parts[1] {
	case "r":
		return DeviceIdentity{Base: parts[0], Role: RoleReceiver}, nil
	case "t":
		return DeviceIdentity{Base: parts[0], Role: RoleTransmitter}, nil
	}
	return DeviceIdentity{}, fmt.Errorf("unknown role suffix in device identifier %q", id)
}

// ID renders the wire identifier ("base:r" or "base:t").
func (d DeviceIdentity) ID() string {
	return d.Base + ":" + d.Role.Suffix()
}
