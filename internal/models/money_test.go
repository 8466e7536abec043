package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyMarshalsWithTwoDecimals(t *testing.T) {
	cases := []struct {
		money Money
		want  string
	}{
		{ZeroMoney(), `"0.00"`},
		{Money{}, `"0.00"`},
		{MustMoney("25"), `"25.00"`},
		{MustMoney("12.5"), `"12.50"`},
	}
	for _, tc := range cases {
		out, err := json.Marshal(tc.money)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(out))
	}
}

func TestMoneyUnmarshalAcceptsStringsAndNumbers(t *testing.T) {
	var body struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1500.00","b":30}`), &body))
	assert.Equal(t, "1500.00", body.A.String())
	assert.Equal(t, "30.00", body.B.String())
}

func TestMoneyPercentRoundsToCents(t *testing.T) {
	price := MustMoney("1999.99")
	assert.Equal(t, "500.00", price.Percent(MustMoney("25")).String())
	assert.Equal(t, "0.00", ZeroMoney().Percent(DefaultCommissionRate).String())
	assert.Equal(t, "33.33", MustMoney("100").Percent(MustMoney("33.333")).String())
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("12.30"))
	assert.Equal(t, "12.30", m.String())
	require.NoError(t, m.Scan(int64(7)))
	assert.Equal(t, "7.00", m.String())
	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
}

func TestConversionRateBounds(t *testing.T) {
	assert.Equal(t, 0, ConversionRate(0, 0))
	assert.Equal(t, 0, ConversionRate(0, 5))
	assert.Equal(t, 33, ConversionRate(1, 3))
	assert.Equal(t, 67, ConversionRate(2, 3))
	assert.Equal(t, 100, ConversionRate(4, 4))
	for total := int64(0); total < 20; total++ {
		for closed := int64(0); closed <= total; closed++ {
			rate := ConversionRate(closed, total)
			assert.GreaterOrEqual(t, rate, 0)
			assert.LessOrEqual(t, rate, 100)
		}
	}
}
