package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("123456")
	assert.NoError(t, err)
	assert.Contains(t, encoded, "$")

	assert.True(t, Verify("123456", encoded))
	assert.False(t, Verify("654321", encoded))
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("secret")
	assert.NoError(t, err)
	second, err := Hash("secret")
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, Verify("secret", first))
	assert.True(t, Verify("secret", second))
}

func TestVerifyMalformed(t *testing.T) {
	assert.False(t, Verify("secret", ""))
	assert.False(t, Verify("secret", "no-separator"))
	assert.False(t, Verify("secret", "not!base64$abc"))
	assert.False(t, Verify("secret", "YWJj$not!base64"))
}
