package identity

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestResolve_UserWinsOverAnonymous(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	userID := node.Generate()

	id, err := Resolve(&userID, "203.0.113.7", "fp-abc")
	assert.NoError(t, err)
	assert.False(t, id.Anonymous())
	assert.Equal(t, "user:"+userID.String(), id.Key())
	// IP and fingerprint are ignored for quota keying once a user is known.
	assert.Empty(t, id.IPAddress)
	assert.Empty(t, id.Fingerprint)
}

func TestResolve_AnonymousCompositeKey(t *testing.T) {
	id, err := Resolve(nil, "203.0.113.7", "fp-abc")
	assert.NoError(t, err)
	assert.True(t, id.Anonymous())
	assert.False(t, id.LowTrust())
	assert.Equal(t, "anon:203.0.113.7:fp-abc", id.Key())
}

func TestResolve_MissingFingerprintIsLowTrust(t *testing.T) {
	id, err := Resolve(nil, "203.0.113.7", "")
	assert.NoError(t, err)
	assert.True(t, id.LowTrust())
	assert.Equal(t, "anon:203.0.113.7:", id.Key())
}

func TestResolve_NothingUsable(t *testing.T) {
	_, err := Resolve(nil, "  ", "fp-abc")
	assert.ErrorIs(t, err, ErrUnresolvable)

	var zero snowflake.ID
	_, err = Resolve(&zero, "", "")
	assert.ErrorIs(t, err, ErrUnresolvable)
}
