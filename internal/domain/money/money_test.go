package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "20.00", Format(2000, "USD"))
	assert.Equal(t, "0.05", Format(5, "usd"))
	assert.Equal(t, "1500", Format(1500, "JPY"))
}

func TestFromDecimal(t *testing.T) {
	v, err := FromDecimal("20.00", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), v)

	v, err = FromDecimal("1500", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), v)

	_, err = FromDecimal("abc", "USD")
	assert.Error(t, err)
}
