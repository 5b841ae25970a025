package acl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *string
	}{
		{"iso date", "2024-01-15", strPtr("2024-01-15T00:00:00")},
		{"brazilian date", "15/01/2024", strPtr("2024-01-15T00:00:00")},
		{"date time", "2024-01-15 08:30:00", strPtr("2024-01-15T08:30:00")},
		{"padded", "  2024-01-15 ", strPtr("2024-01-15T00:00:00")},
		{"time value", time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC), strPtr("2024-01-15T10:05:00")},
		{"bytes", []byte("2024-01-15"), strPtr("2024-01-15T00:00:00")},
		{"unparsable passes through", "15 de janeiro", strPtr("15 de janeiro")},
		{"nil", nil, nil},
		{"blank", "   ", nil},
		{"zero time", time.Time{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestNormalizeString(t *testing.T) {
	assert.Nil(t, NormalizeString(nil, 0))
	assert.Nil(t, NormalizeString("", 0))
	assert.Nil(t, NormalizeString("   ", 10))
	assert.Equal(t, "Maria", *NormalizeString("  Maria ", 0))
	assert.Equal(t, "S", *NormalizeString("SP", 1))
	assert.Equal(t, "Jo", *NormalizeString("João", 2))
	assert.Equal(t, "João", *NormalizeString("João", 4))
	assert.Equal(t, "12345", *NormalizeString(12345, 0))
	assert.Equal(t, "12.5", *NormalizeString(decimal.RequireFromString("12.5"), 0))
}

func TestNormalizeString_DecodesLatin1Bytes(t *testing.T) {
	// "São Paulo" encoded as Windows-1252
	raw := []byte{'S', 0xE3, 'o', ' ', 'P', 'a', 'u', 'l', 'o'}
	got := NormalizeString(raw, 0)
	require.NotNil(t, got)
	assert.Equal(t, "São Paulo", *got)

	assert.Equal(t, "São Paulo", *NormalizeString([]byte("São Paulo"), 0))
}

func TestNormalizeInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int64
	}{
		{"textual decimal truncates", "2.58", int64Ptr(2)},
		{"decimal comma", "7,9", int64Ptr(7)},
		{"integer text", " 42 ", int64Ptr(42)},
		{"int", 3, int64Ptr(3)},
		{"int64", int64(9), int64Ptr(9)},
		{"float", 4.99, int64Ptr(4)},
		{"negative float", -1.5, int64Ptr(-1)},
		{"decimal", decimal.RequireFromString("10.7"), int64Ptr(10)},
		{"bytes", []byte("15"), int64Ptr(15)},
		{"blank", "", nil},
		{"garbage", "abc", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeInt(tt.in))
		})
	}
}

func TestNormalizeDecimal(t *testing.T) {
	got := NormalizeDecimal("2.58")
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString("2.58").Equal(*got))

	got = NormalizeDecimal("1,25")
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString("1.25").Equal(*got))

	got = NormalizeDecimal(int64(7))
	require.NotNil(t, got)
	assert.True(t, decimal.NewFromInt(7).Equal(*got))

	got = NormalizeDecimal(0.5)
	require.NotNil(t, got)
	assert.Equal(t, "0.5", got.String())

	assert.Nil(t, NormalizeDecimal(""))
	assert.Nil(t, NormalizeDecimal("n/a"))
	assert.Nil(t, NormalizeDecimal(nil))
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }
