package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arogyahq/arogya/types"
)

// Key families. Bumping the configured version abandons every key in a
// family without a scan.
const (
	FamilyChatResponse    = "chat:response" // reserved; chat answers are never cached
	FamilyUserInfo        = "user_info"
	FamilySessions        = "sessions"
	FamilySessionMessages = "session_messages"
	FamilySessionFull     = "session_full"
	FamilyCustomer        = "customer"
	FamilyIPCheck         = "ip_check"
)

// Keys builds versioned cache keys with deterministic hashes.
type Keys struct {
	version int
}

// NewKeys returns a key builder pinned to the given cache version.
func NewKeys(version int) Keys {
	if version <= 0 {
		version = 1
	}
	return Keys{version: version}
}

// Build assembles <family>:<subject>:v<version>:<hash(parts)>. With no parts
// the hash segment is omitted so the key stays scannable by prefix.
func (k Keys) Build(family, subject string, parts ...string) string {
	base := fmt.Sprintf("%s:%s:v%d", family, subject, k.version)
	if len(parts) == 0 {
		return base
	}
	return base + ":" + shortHash(strings.Join(parts, "\x1f"))
}

// Pattern returns the scan-invalidate pattern covering every key of a
// family+subject across hashes.
func (k Keys) Pattern(family, subject string) string {
	return fmt.Sprintf("%s:%s:v%d*", family, subject, k.version)
}

// SessionMessages keys the cached message list for a session at a given
// fetch limit.
func (k Keys) SessionMessages(sessionID string, limit int) string {
	return k.Build(FamilySessionMessages, sessionID, fmt.Sprintf("%d", limit))
}

// SessionFull keys the cached session+messages view.
func (k Keys) SessionFull(sessionID string) string {
	return k.Build(FamilySessionFull, sessionID)
}

// Sessions keys the cached session list for a user.
func (k Keys) Sessions(userID string, limit int) string {
	return k.Build(FamilySessions, userID, fmt.Sprintf("%d", limit))
}

// UserInfo keys the cached user record.
func (k Keys) UserInfo(userID string) string {
	return k.Build(FamilyUserInfo, userID)
}

// IPCheck keys the cached reputation record for an address.
func (k Keys) IPCheck(ip string) string {
	return k.Build(FamilyIPCheck, shortHash(ip))
}

// ChatResponse keys a (question, language, profile) triple. The text is
// case- and whitespace-insensitive, and only the six profile key fields
// participate, so trivially equivalent requests map to the same key.
func (k Keys) ChatResponse(text string, lang types.LanguageCode, profile types.Profile) string {
	norm := strings.ToLower(strings.TrimSpace(text))
	fields := fmt.Sprintf("%d|%s|%t|%t|%t|%s",
		profile.Age, profile.Sex, profile.Diabetes, profile.Hypertension,
		profile.Pregnancy, strings.ToLower(profile.City))
	return k.Build(FamilyChatResponse, string(lang), norm, fields)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
