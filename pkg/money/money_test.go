package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMinorIsExact(t *testing.T) {
	assert.Equal(t, "40.00", Format(4000))
	assert.True(t, FromMinor(4000).Equal(decimal.RequireFromString("40")))
	assert.Equal(t, "0.01", Format(1))
	assert.Equal(t, "-1.50", Format(-150))
}

func TestManySmallDonationsDoNotDrift(t *testing.T) {
	total := decimal.Zero
	for i := 0; i < 10_000; i++ {
		total = total.Add(FromMinor(1))
	}
	assert.Equal(t, "100.00", total.StringFixed(2))
}

func TestToMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{in: "40", want: 4000},
		{in: "40.5", want: 4050},
		{in: "0.01", want: 1},
		{in: "19.99", want: 1999},
		{in: "1.005", err: ErrTooPrecise},
		{in: "1.000", want: 100},
	}
	for _, tc := range cases {
		got, err := ToMinor(decimal.RequireFromString(tc.in))
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestToMinorOverflow(t *testing.T) {
	_, err := ToMinor(decimal.NewFromInt(math.MaxInt64))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMultiply(t *testing.T) {
	got, err := Multiply(2500, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got)

	_, err = Multiply(math.MaxInt64, 2)
	assert.ErrorIs(t, err, ErrOverflow)
}
