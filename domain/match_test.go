package domain

import "testing"

func TestMatchInfoEmbedText(t *testing.T) {
	m := MatchInfo{
		Gender:    "female",
		Age:       24,
		Major:     "engineering",
		Native:    "vi",
		Country:   "VN",
		Learnings: []string{"en", "ja"},
		Interests: []string{"music", "travel"},
	}
	want := "[BEGIN]gender: female[SEP]age: 24[SEP]job: engineering[SEP]native language: vi[SEP]learning language: en, ja[SEP]country: VN[SEP]interests: music, travel[END]"
	if got := m.EmbedText(); got != want {
		t.Fatalf("unexpected embed text:\n got %s\nwant %s", got, want)
	}
}

func TestMatchInfoValidate(t *testing.T) {
	if err := (MatchInfo{Native: "vi", Learnings: []string{"en"}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (MatchInfo{Learnings: []string{"en"}}).Validate(); err == nil {
		t.Fatalf("expected missing native error")
	}
	if err := (MatchInfo{Native: "vi"}).Validate(); err == nil {
		t.Fatalf("expected missing learnings error")
	}
}
