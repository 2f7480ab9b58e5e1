package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText(t *testing.T) {
	got, err := ValidateText("  I have a fever\x00  ")
	require.NoError(t, err)
	assert.Equal(t, "I have a fever", got)

	_, err = ValidateText("   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = ValidateText("\x00\x00")
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = ValidateText(strings.Repeat("a", 5001))
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestValidateText_SQLSignatures(t *testing.T) {
	rejected := []string{
		"fever'; DROP TABLE customers; --",
		"x' OR '1'='1",
		`x" or "a"=`,
		"1 UNION SELECT password_hash FROM customers",
		"1 union all select 1,2,3",
		"ok; delete from chat_sessions",
		"headache' -- tail",
		"x'/* hidden */",
		"create table evil (id int)",
		"drop database arogya",
	}
	for _, text := range rejected {
		_, err := ValidateText(text)
		assert.ErrorIs(t, err, ErrSuspiciousText, "text: %s", text)
	}

	// Ordinary health questions mentioning SQL-ish words pass.
	accepted := []string{
		"Should I drop dairy from my diet",
		"Is the union of these two symptoms dangerous",
		"Can I select a different medicine",
		"My doctor said to update my diet",
		"I can't sleep and I'm tired",
	}
	for _, text := range accepted {
		_, err := ValidateText(text)
		assert.NoError(t, err, "text: %s", text)
	}
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("A1b2c3d4-0000-4000-8000-123456789abc"))
	assert.ErrorIs(t, ValidateUUID("not-a-uuid"), ErrBadUUID)
	assert.ErrorIs(t, ValidateUUID(""), ErrBadUUID)
	assert.ErrorIs(t, ValidateUUID("a1b2c3d4-0000-4000-8000-123456789ab"), ErrBadUUID)
	assert.ErrorIs(t, ValidateUUID("a1b2c3d4000040008000123456789abc"), ErrBadUUID)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.NoError(t, ValidateEmail("a.b+tag@sub.example.co.in"))
	assert.ErrorIs(t, ValidateEmail(""), ErrBadEmail)
	assert.ErrorIs(t, ValidateEmail("no-at-sign"), ErrBadEmail)
	assert.ErrorIs(t, ValidateEmail("two@@example.com"), ErrBadEmail)
	assert.ErrorIs(t, ValidateEmail("user@nodot"), ErrBadEmail)
}

func TestSanitizeField(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Mumbai&lt;/b&gt;", SanitizeField(" <b>Mumbai</b> \x00"))
	assert.Equal(t, "plain", SanitizeField("plain"))
}
