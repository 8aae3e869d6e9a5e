//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInt64ToInt(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := Int64ToInt(0)
		assert.NoError(t, err)
		assert.Equal(t, 0, got)
	})

	t.Run("valid large", func(t *testing.T) {
		got, err := Int64ToInt(1 << 40)
		assert.NoError(t, err)
		assert.Equal(t, 1<<40, got)
	})

	t.Run("valid negative", func(t *testing.T) {
		got, err := Int64ToInt(-5)
		assert.NoError(t, err)
		assert.Equal(t, -5, got)
	})
}

func TestInt64ToUint32(t *testing.T) {
	t.Run("valid max", func(t *testing.T) {
		got, err := Int64ToUint32(math.MaxUint32)
		assert.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := Int64ToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := Int64ToUint32(math.MaxUint32 + 1)
		assert.Error(t, err)
	})
}
