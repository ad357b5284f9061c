package fields

import (
	"database/sql/driver"
	"fmt"
)

// EncryptedString holds plain text in memory and is encrypted by the
// installed Codec when written to the database.
type EncryptedString string

// Value implements driver.Valuer.
func (s EncryptedString) Value() (driver.Value, error) {
	if s == "" {
		return "", nil
	}
	c := CurrentCodec()
	if c == nil {
		return nil, ErrNoCodec
	}
	return c.Encrypt(string(s))
}

// Scan implements sql.Scanner.
func (s *EncryptedString) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	var stored string
	switch v := value.(type) {
	case string:
		stored = v
	case []byte:
		stored = string(v)
	default:
		return fmt.Errorf("cannot scan %T into EncryptedString", value)
	}
	if stored == "" {
		*s = ""
		return nil
	}
	c := CurrentCodec()
	if c == nil {
		return ErrNoCodec
	}
	plain, err := c.Decrypt(stored)
	if err != nil {
		return err
	}
	*s = EncryptedString(plain)
	return nil
}

// String returns the plain text.
func (s EncryptedString) String() string {
	return string(s)
}
