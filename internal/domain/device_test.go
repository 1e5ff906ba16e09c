package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceID(t *testing.T) {
	identity, err := ParseDeviceID("sdr1:r")
	require.NoError(t, err)
	assert.Equal(t, "sdr1", identity.Base)
	assert.Equal(t, RoleReceiver, identity.Role)
	assert.Equal(t, "sdr1:r", identity.ID())

	identity, err = ParseDeviceID("sdr1:t")
	require.NoError(t, err)
	assert.Equal(t, RoleTransmitter, identity.Role)
	assert.Equal(t, "sdr1:t", identity.ID())
}

func TestParseDeviceIDRejections(t *testing.T) {
	for _, id := range []string{"", "sdr1", "sdr1:x", "sdr1:receiver", ":r", "sdr1:r:extra", "sdr1:"} {
		t.Run(id, func(t *testing.T) {
			_, err := ParseDeviceID(id)
			assert.Error(t, err)
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("receiver")
	require.NoError(t, err)
	assert.Equal(t, RoleReceiver, role)
	assert.Equal(t, "r", role.Suffix())

	role, err = ParseRole("transmitter")
	require.NoError(t, err)
	assert.Equal(t, RoleTransmitter, role)
	assert.Equal(t, "t", role.Suffix())

	for _, s := range []string{"", "r", "t", "Receiver", "sender"} {
		_, err := ParseRole(s)
		assert.Error(t, err, s)
	}
}
