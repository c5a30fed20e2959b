package quote

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolLimiter(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s := newSymbolLimiter(0, time.Minute)
		for i := 0; i < 100; i++ {
			require.NoError(t, s.allow("IBM"))
		}
		assert.Equal(t, 0, s.size())
	})

	t.Run("Budget refills", func(t *testing.T) {
		now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
		s := newSymbolLimiter(2, time.Minute)
		s.now = func() time.Time { return now }

		require.NoError(t, s.allow("IBM"))
		require.NoError(t, s.allow("IBM"))
		assert.ErrorIs(t, s.allow("IBM"), ErrGatewayUnavailable)

		now = now.Add(30 * time.Second)
		assert.NoError(t, s.allow("IBM"))
	})

	t.Run("Idle symbols are evicted", func(t *testing.T) {
		// Arrange
		now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
		s := newSymbolLimiter(2, time.Minute)
		s.now = func() time.Time { return now }
		s.max = 4

		for i := 0; i < 4; i++ {
			require.NoError(t, s.allow(fmt.Sprintf("SYM%d", i)))
		}
		require.NoError(t, s.allow("SYM0"))
		assert.Equal(t, 4, s.size())

		// Act
		now = now.Add(time.Minute)
		require.NoError(t, s.allow("NEW"))

		// Assert
		assert.Equal(t, 1, s.size())
	})

	t.Run("Busy symbols keep their budget", func(t *testing.T) {
		// Arrange
		now := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
		s := newSymbolLimiter(2, time.Hour)
		s.now = func() time.Time { return now }
		s.max = 2

		require.NoError(t, s.allow("IBM"))
		require.NoError(t, s.allow("IBM"))
		require.NoError(t, s.allow("MSFT"))

		// Act
		require.NoError(t, s.allow("AAPL"))

		// Assert
		assert.ErrorIs(t, s.allow("IBM"), ErrGatewayUnavailable)
		assert.Equal(t, 3, s.size())
	})
}
