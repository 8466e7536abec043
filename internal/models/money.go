package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount stored as decimal and rendered with two decimals
type Money struct {
	decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewMoney parses a decimal string such as "25.00"
func NewMoney(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// MustMoney is NewMoney for constants and tests
func MustMoney(value string) Money {
	m, err := NewMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromInt returns a whole amount
func MoneyFromInt(value int64) Money {
	return Money{decimal.NewFromInt(value)}
}

// ZeroMoney returns 0.00
func ZeroMoney() Money {
	return Money{decimal.Zero}
}

func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

func (m Money) Sub(other Money) Money {
	return Money{m.Decimal.Sub(other.Decimal)}
}

// Percent returns rate percent of m rounded to cents
func (m Money) Percent(rate Money) Money {
	return Money{m.Decimal.Mul(rate.Decimal).Div(hundred).Round(2)}
}

// Round2 rounds to two decimal places
func (m Money) Round2() Money {
	return Money{m.Decimal.Round(2)}
}

func (m Money) Equal(other Money) bool {
	return m.Decimal.Round(2).Equal(other.Decimal.Round(2))
}

func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// MarshalJSON renders money as a string with exactly two decimals
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.StringFixed(2))
}

// UnmarshalJSON accepts both quoted and bare numbers
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.StringFixed(2), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.Scan(value)
}
