package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"primary_color": "#3B82F6",
		"always_enable": true,
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["primary_color"] != "#3B82F6" {
		t.Errorf("expected primary_color=#3B82F6, got %v", result["primary_color"])
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"default_voice": "alloy", "word_limit": 250}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["default_voice"] != "alloy" {
		t.Errorf("expected default_voice=alloy, got %v", j["default_voice"])
	}

	if j["word_limit"].(float64) != 250 {
		t.Errorf("expected word_limit=250, got %v", j["word_limit"])
	}
}

func TestParseService(t *testing.T) {
	cases := map[string]Service{
		"google":   ServiceGoogle,
		"openai":   ServiceOpenAI,
		"chatgpt":  ServiceOpenAI,
		" Google ": ServiceGoogle,
	}
	for in, want := range cases {
		got, err := ParseService(in)
		if err != nil {
			t.Fatalf("ParseService(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseService(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseService("polly"); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{DefaultVoice: "nova", DefaultTheme: "neon"}.WithDefaults()

	if s.DefaultVoice != "nova" {
		t.Errorf("explicit voice overwritten: %s", s.DefaultVoice)
	}
	if s.DefaultTheme != ThemeLight {
		t.Errorf("invalid theme not replaced: %s", s.DefaultTheme)
	}
	if s.WordLimit != 500 {
		t.Errorf("expected word limit 500, got %d", s.WordLimit)
	}
	if s.PlayerText != "Listen to Article" {
		t.Errorf("unexpected player text %q", s.PlayerText)
	}
}

func TestSettingsJSONBRoundTrip(t *testing.T) {
	in := DefaultSettings()
	in.GoogleAPIKey = "g-key"
	in.AlwaysEnable = true

	j, err := in.ToJSONB()
	if err != nil {
		t.Fatalf("ToJSONB: %v", err)
	}
	out, err := SettingsFromJSONB(j)
	if err != nil {
		t.Fatalf("SettingsFromJSONB: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestAPIKeyFor(t *testing.T) {
	s := Settings{GoogleAPIKey: "g", OpenAIAPIKey: "o"}
	if s.APIKeyFor(ServiceGoogle) != "g" || s.APIKeyFor(ServiceOpenAI) != "o" {
		t.Error("APIKeyFor returned the wrong key")
	}
	if s.APIKeyFor("polly") != "" {
		t.Error("unknown service should have no key")
	}
}
