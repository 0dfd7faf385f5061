package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestResolveSecret_EnvOnly(t *testing.T) {
	t.Setenv("TEST_DIALOGUE_SECRET", "env-value")

	value, err := ResolveSecret("TEST_DIALOGUE_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("got %q, want %q", value, "env-value")
	}
}

func TestResolveSecret_FileWinsOverEnv(t *testing.T) {
	t.Setenv("TEST_DIALOGUE_SECRET", "env-value")
	t.Setenv("TEST_DIALOGUE_SECRET_FILE", writeSecret(t, "file-value\n"))

	value, err := ResolveSecret("TEST_DIALOGUE_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("got %q, want %q (file should win over env)", value, "file-value")
	}
}

func TestResolveSecret_NeitherSet(t *testing.T) {
	value, err := ResolveSecret("TEST_DIALOGUE_SECRET_UNSET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty string", value)
	}
}

func TestResolveSecret_FileNotFound(t *testing.T) {
	t.Setenv("TEST_DIALOGUE_SECRET_FILE", "/nonexistent/path/to/secret")

	if _, err := ResolveSecret("TEST_DIALOGUE_SECRET"); err == nil {
		t.Error("expected error when file does not exist")
	}
}

func TestResolveSecret_TrimsWhitespace(t *testing.T) {
	t.Setenv("TEST_DIALOGUE_SECRET_FILE", writeSecret(t, "  secret-value  \n\n"))

	value, err := ResolveSecret("TEST_DIALOGUE_SECRET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "secret-value" {
		t.Errorf("got %q, want %q (whitespace should be trimmed)", value, "secret-value")
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("DIALOGUE_ADMIN_USER", "admin")
	t.Setenv("DIALOGUE_ADMIN_PASS_FILE", writeSecret(t, "hunter2\n"))
	t.Setenv("DIALOGUE_PG_PASSWORD", "pg-pass")

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AdminUser != "admin" || creds.AdminPass != "hunter2" {
		t.Errorf("unexpected admin credentials %q/%q", creds.AdminUser, creds.AdminPass)
	}
	if creds.PostgresPassword != "pg-pass" {
		t.Errorf("got %q, want pg-pass", creds.PostgresPassword)
	}
	if creds.OperatorUser != "" || creds.MQTTPassword != "" {
		t.Error("expected unset secrets to stay empty")
	}
}

func TestLoadCredentials_UnreadableFile(t *testing.T) {
	t.Setenv("DIALOGUE_MQTT_PASSWORD_FILE", filepath.Join(t.TempDir(), "missing"))

	if _, err := LoadCredentials(); err == nil {
		t.Error("expected error for unreadable secret file")
	}
}
