package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		assert.GreaterOrEqual(t, code, "100000")
		seen[code] = true
	}
	// 50 draws from 900k values colliding down to a handful would mean a
	// broken generator.
	assert.Greater(t, len(seen), 10)
}

func TestOTPBody(t *testing.T) {
	body := OTPBody("123456")
	assert.True(t, strings.Contains(body, "123456"))
	assert.True(t, strings.Contains(body, "10 minutes"))
}
