package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	digest, err := Hash("P@ssw0rd1")
	require.NoError(t, err)

	assert.True(t, Verify("P@ssw0rd1", digest))
	assert.False(t, Verify("P@ssw0rd2", digest))
	assert.False(t, Verify("", digest))
}

func TestHashIsSaltedWithFixedCost(t *testing.T) {
	first, err := Hash("same-password1")
	require.NoError(t, err)
	second, err := Hash("same-password1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	cost, err := bcrypt.Cost([]byte(first))
	require.NoError(t, err)
	assert.Equal(t, Cost, cost)
}

func TestHashRejectsOverlongInput(t *testing.T) {
	_, err := Hash(strings.Repeat("a", MaxLength+1))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestVerifyGarbageDigest(t *testing.T) {
	assert.False(t, Verify("anything", "not-a-bcrypt-digest"))
	assert.False(t, VerifyDummy("anything"))
}
