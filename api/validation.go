package api

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// maxQuestionLen bounds the chat text after normalization.
const maxQuestionLen = 5000

var (
	// ErrEmptyText reports a blank question after normalization.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrTextTooLong reports an oversize question.
	ErrTextTooLong = fmt.Errorf("text must be at most %d characters", maxQuestionLen)
	// ErrSuspiciousText reports a question matching the SQL signature set.
	ErrSuspiciousText = errors.New("text contains disallowed content")
	// ErrBadUUID reports a path identifier that is not a UUID.
	ErrBadUUID = errors.New("identifier must be a UUID")
	// ErrBadEmail reports a malformed email address.
	ErrBadEmail = errors.New("invalid email address")
)

// sqlSignatures is the rejection set applied to chat text before any cache or
// database call. Each pattern targets a structural injection shape, not a
// keyword, so ordinary health questions mentioning "union" or "drop" pass.
var sqlSignatures = []*regexp.Regexp{
	// Comment sequence following a quote.
	regexp.MustCompile(`(?i)['"]\s*(--|#|/\*)`),
	// Quoted-string OR/AND comparison: ' OR '1'='1
	regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?[\w]+['"]?\s*=`),
	// Stacked statement introducing DDL/DML.
	regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|alter|create|truncate)\b`),
	// UNION SELECT.
	regexp.MustCompile(`(?i)\bunion\b\s+(all\s+)?\bselect\b`),
	// DDL aimed at a table or database.
	regexp.MustCompile(`(?i)\b(drop|alter|create|truncate)\b\s+(table|database|schema|index)\b`),
}

var uuidPattern = regexp.MustCompile(
	`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// StripNullBytes removes NUL bytes, which no legitimate question contains.
func StripNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// ValidateText normalizes and validates a chat question. The returned string
// is the normalized form the pipeline should use.
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(StripNullBytes(text))
	if text == "" {
		return "", ErrEmptyText
	}
	if len(text) > maxQuestionLen {
		return "", ErrTextTooLong
	}
	for _, sig := range sqlSignatures {
		if sig.MatchString(text) {
			return "", ErrSuspiciousText
		}
	}
	return text, nil
}

// SanitizeField cleans a free-form non-question string field: null bytes
// dropped, HTML escaped, whitespace trimmed.
func SanitizeField(s string) string {
	return html.EscapeString(strings.TrimSpace(StripNullBytes(s)))
}

// ValidateUUID checks a path identifier.
func ValidateUUID(id string) error {
	if !uuidPattern.MatchString(id) {
		return ErrBadUUID
	}
	return nil
}

// ValidateEmail checks the address shape. Deliverability is not verified.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 || !emailPattern.MatchString(email) {
		return ErrBadEmail
	}
	return nil
}
