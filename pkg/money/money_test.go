package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		cases := map[string]Amount{
			"500":     50000,
			"12.5":    1250,
			"0.01":    1,
			"-200.75": -20075,
			" 3.10 ":  310,
		}
		for in, want := range cases {
			got, err := Parse(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse("abc")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = Parse("")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		_, err := Parse("1.005")
		assert.ErrorIs(t, err, ErrTooPrecise)
	})

	t.Run("trailing zeros are fine", func(t *testing.T) {
		got, err := Parse("1.500")
		require.NoError(t, err)
		assert.Equal(t, Amount(150), got)
	})

	t.Run("rejects overflow", func(t *testing.T) {
		_, err := Parse("999999999999999999999")
		assert.ErrorIs(t, err, ErrOutOfRange)
	})
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "500.00", Amount(50000).String())
	assert.Equal(t, "-200.00", Amount(-20000).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "0.00", Zero.String())
	assert.Equal(t, "+300.00", Amount(30000).Signed())
	assert.Equal(t, "-0.10", Amount(-10).Signed())
	assert.Equal(t, "0.00", Zero.Signed())
}

func TestAmount_NoDriftAcrossCycles(t *testing.T) {
	step := MustParse("0.10")
	var total Amount
	for i := 0; i < 10_000; i++ {
		total = total.Add(step)
	}
	for i := 0; i < 10_000; i++ {
		total = total.Sub(step)
	}
	assert.True(t, total.IsZero())
	assert.Equal(t, MustParse("1000"), Sum(MustParse("999.90"), step))
}

func TestAmount_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Due Amount `json:"due"`
	}{Due: 1250})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"12.50"}`, string(b))

	var in struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"4.20","b":7}`), &in))
	assert.Equal(t, Amount(420), in.A)
	assert.Equal(t, Amount(700), in.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &in))
}
