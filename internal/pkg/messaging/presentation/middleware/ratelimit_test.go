package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendRateLimiterIsPerKey(t *testing.T) {
	rl := NewSendRateLimiter(1, 2)

	assert.True(t, rl.Allow("user:a"))
	assert.True(t, rl.Allow("user:a"))
	assert.False(t, rl.Allow("user:a"))

	assert.True(t, rl.Allow("user:b"))
}
