package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MatchInfo is the profile used to find conversation partners.
type MatchInfo struct {
	UserID    string   `json:"userId"`
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	Major     string   `json:"major"`
	Native    string   `json:"native"`    // RFC 5646 language tag
	Country   string   `json:"country"`   // ISO 3166 code
	Learnings []string `json:"learnings"` // RFC 5646 language tags
	Interests []string `json:"interests"`
	Age       int      `json:"age"`
}

const matchEmbedFormat = "[BEGIN]gender: %s[SEP]age: %v[SEP]job: %s[SEP]native language: %s[SEP]learning language: %s[SEP]country: %s[SEP]interests: %s[END]"

// EmbedText renders the profile as the text that gets embedded.
func (m MatchInfo) EmbedText() string {
	return fmt.Sprintf(matchEmbedFormat,
		m.Gender,
		m.Age,
		m.Major,
		m.Native,
		strings.Join(m.Learnings, ", "),
		m.Country,
		strings.Join(m.Interests, ", "),
	)
}

// Validate reports the first missing field needed to embed the profile.
func (m MatchInfo) Validate() error {
	switch {
	case m.Native == "":
		return errors.New("native language is required")
	case len(m.Learnings) == 0:
		return errors.New("at least one learning language is required")
	case m.Age < 0:
		return errors.New("age must not be negative")
	}
	return nil
}

// AddUserMatchInfoRequest is the internal payload for storing a profile on
// behalf of another service.
type AddUserMatchInfoRequest struct {
	Type      RequestType `json:"type"`
	MatchInfo MatchInfo   `json:"matchInfo"`
}
