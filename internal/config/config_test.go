package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

// unsetenv clears a variable for the duration of the test. t.Setenv registers
// the restore of the original value first.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FRONTEND_URL", "DB_PATH", "SESSION_TTL_MINUTES",
		"GROQ_API_KEYS", "OPENAI_API_KEYS", "GEMINI_API_KEYS"} {
		unsetenv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "./data/dojo.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if len(cfg.GroqAPIKeys) != 0 || len(cfg.OpenAIAPIKeys) != 0 || len(cfg.GeminiAPIKeys) != 0 {
		t.Error("key pools should be empty by default")
	}
}

func TestLoadKeyPools(t *testing.T) {
	t.Setenv("GROQ_API_KEYS", "gsk_one, gsk_two ,,gsk_three")
	t.Setenv("OPENAI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEYS", "aiz_one")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.GroqAPIKeys, []string{"gsk_one", "gsk_two", "gsk_three"}) {
		t.Errorf("GroqAPIKeys = %v", cfg.GroqAPIKeys)
	}
	if len(cfg.OpenAIAPIKeys) != 0 {
		t.Errorf("OpenAIAPIKeys = %v, want empty", cfg.OpenAIAPIKeys)
	}
	if !reflect.DeepEqual(cfg.GeminiAPIKeys, []string{"aiz_one"}) {
		t.Errorf("GeminiAPIKeys = %v", cfg.GeminiAPIKeys)
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{Port: "8080", DBPath: "x.db", SessionTTL: time.Minute}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty port", Config{DBPath: "x.db", SessionTTL: time.Minute}},
		{"empty db path", Config{Port: "8080", SessionTTL: time.Minute}},
		{"zero ttl", Config{Port: "8080", DBPath: "x.db"}},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://dojo.example.com", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.url}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
