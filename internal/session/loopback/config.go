package loopback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType is the session provider type token for configuration.
const ProviderType = "loopback"

type runtimeConfig struct {
	Accounts    []Account `json:"accounts"`
	InboxBuffer int       `json:"inbox_buffer"`
}

// NewHubFromConfig builds a hub from one provider config payload. Empty config is allowed.
func NewHubFromConfig(logger *slog.Logger, rawConfig []byte) (*Hub, error) {
	cfg, err := parseRuntimeConfig(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("parse loopback config: %w", err)
	}

	return NewHub(
		WithLogger(logger),
		WithAccounts(cfg.Accounts...),
		WithInboxBuffer(cfg.InboxBuffer),
	), nil
}

func parseRuntimeConfig(raw []byte) (runtimeConfig, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return runtimeConfig{}, nil
	}

	var parsed runtimeConfig
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return runtimeConfig{}, fmt.Errorf("unmarshal: %w", err)
	}
	if parsed.InboxBuffer < 0 {
		return runtimeConfig{}, fmt.Errorf("inbox_buffer must be >= 0")
	}
	for idx, account := range parsed.Accounts {
		if strings.TrimSpace(account.Email) == "" {
			return runtimeConfig{}, fmt.Errorf("accounts[%d]: empty email", idx)
		}
	}

	return parsed, nil
}
