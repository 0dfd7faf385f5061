package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, reads the secret from that file path.
// Otherwise falls back to the value of envName.
// Returns empty string if neither is set.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(envName), nil
}

// Credentials holds every secret the player reads at startup.
type Credentials struct {
	AdminUser        string
	AdminPass        string
	OperatorUser     string
	OperatorPass     string
	PostgresPassword string
	MQTTPassword     string
}

// LoadCredentials resolves all DIALOGUE_* secrets. The first unreadable
// secret file aborts loading; the error never contains secret content.
func LoadCredentials() (*Credentials, error) {
	c := &Credentials{}
	targets := []struct {
		env string
		dst *string
	}{
		{"DIALOGUE_ADMIN_USER", &c.AdminUser},
		{"DIALOGUE_ADMIN_PASS", &c.AdminPass},
		{"DIALOGUE_OPERATOR_USER", &c.OperatorUser},
		{"DIALOGUE_OPERATOR_PASS", &c.OperatorPass},
		{"DIALOGUE_PG_PASSWORD", &c.PostgresPassword},
		{"DIALOGUE_MQTT_PASSWORD", &c.MQTTPassword},
	}
	for _, t := range targets {
		v, err := ResolveSecret(t.env)
		if err != nil {
			return nil, err
		}
		*t.dst = v
	}
	return c, nil
}
