package fields

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func withCodec(t *testing.T) Codec {
	t.Helper()
	c, err := NewAEADCodec(testKey)
	require.NoError(t, err)
	prev := CurrentCodec()
	SetCodec(c)
	t.Cleanup(func() { SetCodec(prev) })
	return c
}

func TestAEADCodecRoundTrip(t *testing.T) {
	c := withCodec(t)
	stored, err := c.Encrypt("secret value")
	require.NoError(t, err)
	assert.NotContains(t, stored, "secret")

	plain, err := c.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "secret value", plain)

	again, err := c.Encrypt("secret value")
	require.NoError(t, err)
	assert.NotEqual(t, stored, again, "nonces differ per call")
}

func TestNewAEADCodecKeys(t *testing.T) {
	_, err := NewAEADCodec("short")
	assert.Error(t, err)

	_, err = NewAEADCodec(base64.StdEncoding.EncodeToString([]byte(testKey)))
	assert.NoError(t, err)
}

func TestDecryptTampered(t *testing.T) {
	c := withCodec(t)
	_, err := c.Decrypt("not base64!")
	assert.Error(t, err)

	stored, _ := c.Encrypt("x")
	raw, _ := base64.StdEncoding.DecodeString(stored)
	raw[len(raw)-1] ^= 0xff
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestEncryptedStringValueScan(t *testing.T) {
	withCodec(t)
	v, err := EncryptedString("4111-1111").Value()
	require.NoError(t, err)
	stored, ok := v.(string)
	require.True(t, ok)

	var s EncryptedString
	require.NoError(t, s.Scan([]byte(stored)))
	assert.Equal(t, "4111-1111", s.String())

	decoded, err := DecryptStored(stored)
	require.NoError(t, err)
	assert.Equal(t, "4111-1111", decoded)

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, EncryptedString(""), s)
}

func TestEncryptedStringWithoutCodec(t *testing.T) {
	prev := CurrentCodec()
	SetCodec(nil)
	defer SetCodec(prev)

	_, err := EncryptedString("x").Value()
	assert.True(t, errors.Is(err, ErrNoCodec))

	var s EncryptedString
	assert.True(t, errors.Is(s.Scan("abc"), ErrNoCodec))
}

func TestJSONText(t *testing.T) {
	j, err := NewJSONText(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	raw, err := NewJSONText(`[1,2]`)
	require.NoError(t, err)
	assert.Equal(t, JSONText(`[1,2]`), raw)

	_, err = JSONText(`{broken`).Value()
	assert.Error(t, err)

	out, err := json.Marshal(struct {
		Doc JSONText `json:"doc"`
	}{Doc: JSONText(`{"k":"v"}`)})
	require.NoError(t, err)
	assert.Equal(t, `{"doc":{"k":"v"}}`, string(out))

	var back struct {
		Doc JSONText `json:"doc"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(`{"doc":[true]}`)).Decode(&back))
	assert.Equal(t, `[true]`, string(back.Doc))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"k": "v"}, Decode(`{"k":"v"}`))
	assert.Equal(t, []interface{}{float64(1), float64(2)}, Decode([]byte(`[1,2]`)))
	assert.Nil(t, Decode("{nope"))
	assert.Nil(t, Decode(nil))
}
