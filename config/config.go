// Package config loads the collaborator configuration record described in
// §6.1: server URL, auth mode and credentials, and optional defaults. It
// is process bootstrap, not core logic, but still carries the ambient
// koanf-based loading style used elsewhere in the surrounding stack.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// AuthMode identifies which auth injector the DAV clients should build.
type AuthMode string

const (
	AuthBasic       AuthMode = "basic"
	AuthBearer      AuthMode = "bearer"
	AuthSiteSpecific AuthMode = "sitespecific"
)

// Config is the record the core consumes. Username/Password apply to
// AuthBasic; Token applies to AuthBearer and AuthSiteSpecific; HeaderName
// names the header AuthSiteSpecific sends the token under.
type Config struct {
	ServerURL string   `koanf:"server_url"`
	AuthMode  AuthMode `koanf:"auth_mode"`

	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	Token      string `koanf:"token"`
	HeaderName string `koanf:"header_name"`

	DefaultCalendarName    string `koanf:"default_calendar_name"`
	DefaultAddressBookName string `koanf:"default_addressbook_name"`
	Timezone               string `koanf:"timezone"`
}

// Default returns the values in place before the environment overlay:
// basic auth and the X-Session-Token header name.
func Default() Config {
	return Config{
		AuthMode:   AuthBasic,
		HeaderName: "X-Session-Token",
	}
}

// Load reads AGENTDAV_-prefixed environment variables over Default(),
// e.g. AGENTDAV_SERVER_URL, AGENTDAV_AUTH_MODE, AGENTDAV_USERNAME.
func Load() (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if err := k.Load(env.Provider("AGENTDAV_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "AGENTDAV_"))
	}), nil); err != nil {
		return cfg, fmt.Errorf("config: load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the invariants a startup validator would enforce
// (§7, "Config invalid" kind): fatal, surfacing the offending field.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("config: server_url is required")
	}
	switch c.AuthMode {
	case AuthBasic:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("config: auth_mode=basic requires username and password")
		}
	case AuthBearer:
		if c.Token == "" {
			return fmt.Errorf("config: auth_mode=bearer requires token")
		}
	case AuthSiteSpecific:
		if c.Token == "" || c.HeaderName == "" {
			return fmt.Errorf("config: auth_mode=sitespecific requires token and header_name")
		}
	default:
		return fmt.Errorf("config: unknown auth_mode %q", c.AuthMode)
	}
	return nil
}
