package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/SimplifySpec/pkg/fields"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
)

func TestViewValue(t *testing.T) {
	created := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	n := int64(4)

	tests := []struct {
		name string
		typ  metadata.SemanticType
		in   interface{}
		want interface{}
	}{
		{"nil", metadata.TypeString, nil, nil},
		{"bool from int", metadata.TypeBoolean, int64(1), true},
		{"bool from bytes", metadata.TypeBoolean, []byte("false"), false},
		{"int pointer", metadata.TypeInteger, &n, int64(4)},
		{"nil pointer", metadata.TypeInteger, (*int64)(nil), nil},
		{"decimal", metadata.TypeDecimal, decimal.RequireFromString("12.50"), 12.5},
		{"decimal text", metadata.TypeDecimal, "3.25", 3.25},
		{"binary", metadata.TypeBinary, []byte("hi"), "aGk="},
		{"nil binary", metadata.TypeBinary, []byte(nil), nil},
		{"empty binary", metadata.TypeBinary, []byte{}, ""},
		{"nil json text", metadata.TypeJSON, fields.JSONText(nil), nil},
		{"datetime", metadata.TypeDateTime, created, created},
		{"datetime text", metadata.TypeDateTime, "2021-03-04T05:06:07Z", created},
		{"string bytes", metadata.TypeString, []byte("abc"), "abc"},
		{"json text", metadata.TypeJSON, fields.JSONText(`{"a":1}`), map[string]interface{}{"a": float64(1)}},
		{"invalid json", metadata.TypeJSON, "{", nil},
		{"encrypted plain", metadata.TypeEncrypted, fields.EncryptedString("secret"), "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := viewValue(&metadata.Field{Name: "f", Type: tt.typ}, tt.in)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				require.IsType(t, time.Time{}, got)
				assert.True(t, want.Equal(got.(time.Time)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewValueEncryptedStored(t *testing.T) {
	codec, err := fields.NewAEADCodec("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	prev := fields.CurrentCodec()
	fields.SetCodec(codec)
	defer fields.SetCodec(prev)

	stored, err := codec.Encrypt("hello")
	require.NoError(t, err)
	got, err := viewValue(&metadata.Field{Name: "f", Type: metadata.TypeEncrypted}, []byte(stored))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestKeyOf(t *testing.T) {
	n := int64(3)
	assert.Equal(t, keyOf(int64(3)), keyOf(&n))
	assert.Equal(t, "abc", keyOf([]byte("abc")))
	assert.Equal(t, "<nil>", keyOf(nil))
}

func TestCoerceKey(t *testing.T) {
	pk := &metadata.Field{Name: "id", Type: metadata.TypeInteger}
	v, err := CoerceKey(pk, " 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = CoerceKey(pk, "x")
	assert.Error(t, err)

	v, err = CoerceKey(&metadata.Field{Name: "code", Type: metadata.TypeString}, "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", v)
}
