package trust

import (
	"testing"
	"time"

	"github.com/aronia-net/aronia/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCircularTrust(t *testing.T) {
	assert.True(t, DetectCircularTrust([]string{"b", "c", "a"}, "a"))
	assert.True(t, DetectCircularTrust([]string{"b", "c", "b"}, "z"))
	assert.False(t, DetectCircularTrust([]string{"a", "b", "c"}, "z"))
}

func TestBuildSignValidate(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "alice", []string{"chat"}, "hi", []string{introducer.PublicKey().Hex()})
	require.NoError(t, Sign(introducer, in))

	err = Validate(in, introducer.PublicKey(), self.PublicKey(), DefaultConfig())
	assert.NoError(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "", nil, "", nil)
	in.Timestamp = time.Now().Add(-25 * time.Hour).UnixMilli()
	require.NoError(t, Sign(introducer, in))

	err = Validate(in, introducer.PublicKey(), self.PublicKey(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateRejectsFutureTimestamp(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "", nil, "", nil)
	in.Timestamp = time.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, Sign(introducer, in))

	err = Validate(in, introducer.PublicKey(), self.PublicKey(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestValidateRejectsBadSignature(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "", nil, "", nil)
	require.NoError(t, Sign(introducer, in))
	in.Message = "tampered after signing"

	err = Validate(in, introducer.PublicKey(), self.PublicKey(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestValidateRejectsIntroducerMismatch(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	impostor, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "", nil, "", nil)
	require.NoError(t, Sign(introducer, in))

	err = Validate(in, impostor.PublicKey(), self.PublicKey(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "introducer mismatch")
}

func TestValidateRejectsCycle(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	in := Build(introducer, target.PublicKey(), "", nil, "", []string{self.PublicKey().Hex()})
	require.NoError(t, Sign(introducer, in))

	err = Validate(in, introducer.PublicKey(), self.PublicKey(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestValidateRejectsExcessiveDepth(t *testing.T) {
	introducer, err := identity.Generate()
	require.NoError(t, err)
	target, err := identity.Generate()
	require.NoError(t, err)
	self, err := identity.Generate()
	require.NoError(t, err)

	longPath := []string{"a", "b", "c", "d"}
	in := Build(introducer, target.PublicKey(), "", nil, "", longPath)
	require.NoError(t, Sign(introducer, in))

	cfg := DefaultConfig()
	cfg.MaxTrustDepth = 3
	err = Validate(in, introducer.PublicKey(), self.PublicKey(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")
}
