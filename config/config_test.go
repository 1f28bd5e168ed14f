package config

import "testing"

func TestValidateRequiresServerURL(t *testing.T) {
	c := Default()
	c.Username, c.Password = "u", "p"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing server_url")
	}
}

func TestValidateBasicRequiresCredentials(t *testing.T) {
	c := Default()
	c.ServerURL = "https://dav.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing basic credentials")
	}
}

func TestValidateBearerRequiresToken(t *testing.T) {
	c := Default()
	c.ServerURL = "https://dav.example.com"
	c.AuthMode = AuthBearer
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing bearer token")
	}
	c.Token = "tok"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("AGENTDAV_SERVER_URL", "https://dav.example.com")
	t.Setenv("AGENTDAV_AUTH_MODE", "basic")
	t.Setenv("AGENTDAV_USERNAME", "ada")
	t.Setenv("AGENTDAV_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://dav.example.com" || cfg.Username != "ada" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
