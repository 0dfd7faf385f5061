package api

import "testing"

// clearTLSEnv prevents TLS initialization from picking up certs from the host.
func clearTLSEnv(t *testing.T) {
	t.Setenv("DIALOGUE_TLS_CERT", "")
	t.Setenv("DIALOGUE_TLS_KEY", "")
	SetTLSConfigForTest(nil)
}

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name    string
		cert    string
		key     string
		enabled bool
	}{
		{"neither set", "", "", false},
		{"only cert", "/path/to/cert.pem", "", false},
		{"only key", "", "/path/to/key.pem", false},
		{"both set", "/path/to/cert.pem", "/path/to/key.pem", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTLSEnv(t)
			t.Setenv("DIALOGUE_TLS_CERT", tt.cert)
			t.Setenv("DIALOGUE_TLS_KEY", tt.key)

			if err := InitTLS(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if IsTLSEnabled() != tt.enabled {
				t.Errorf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.enabled)
			}
			if tt.enabled {
				cfg := GetTLSConfig()
				if cfg.CertFile != tt.cert || cfg.KeyFile != tt.key {
					t.Errorf("unexpected config %+v", cfg)
				}
			}
		})
	}
}

func TestLoadTLSConfig_NotEnabled(t *testing.T) {
	SetTLSConfigForTest(nil)

	if cfg := LoadTLSConfig(); cfg != nil {
		t.Error("LoadTLSConfig should return nil when TLS is not enabled")
	}
}

func TestLoadTLSConfig_InvalidFiles(t *testing.T) {
	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	defer SetTLSConfigForTest(nil)

	if cfg := LoadTLSConfig(); cfg != nil {
		t.Error("LoadTLSConfig should return nil when cert files don't exist")
	}
}
