package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"OMNI_NAME", "OMNI_LISTEN", "OMNI_GRPC_LISTEN", "OMNI_KEY_FILE",
	"OMNI_KEY_PASSPHRASE", "OMNI_ACCOUNTS_STATE_PATH", "OMNI_ACCOUNTS_PASSPHRASE",
	"OMNI_ACCOUNTS_ENABLED", "OMNI_RATE_LIMIT_ENABLED", "OMNI_RATE_LIMIT_RPS",
	"OMNI_RATE_LIMIT_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMergesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  name: ledger-1
  listen: /ip4/0.0.0.0/tcp/9000
  grpcListen: 127.0.0.1:9001
  keyFile: /var/lib/omni/key
  rateLimit:
    enabled: true
    rps: 5
accounts:
  enabled: false
  statePath: /var/lib/omni/accounts.cbor
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Config{
		Server: ServerConfig{
			Name:       "ledger-1",
			Listen:     "/ip4/0.0.0.0/tcp/9000",
			GRPCListen: "127.0.0.1:9001",
			KeyFile:    "/var/lib/omni/key",
			RateLimit:  RateLimitConfig{Enabled: true, RPS: 5, Burst: 40},
		},
		Accounts: AccountsConfig{Enabled: false, StatePath: "/var/lib/omni/accounts.cbor"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  listen: 127.0.0.1:7000\n")
	t.Setenv("OMNI_LISTEN", "127.0.0.1:7100")
	t.Setenv("OMNI_RATE_LIMIT_ENABLED", "yes")
	t.Setenv("OMNI_RATE_LIMIT_BURST", "3")
	t.Setenv("OMNI_ACCOUNTS_PASSPHRASE", "correct horse")
	t.Setenv("OMNI_KEY_PASSPHRASE", "battery staple")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:7100" {
		t.Fatalf("expected env listen, got %q", cfg.Server.Listen)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.Burst != 3 {
		t.Fatalf("unexpected rate limit %+v", cfg.Server.RateLimit)
	}
	if cfg.Accounts.Passphrase != "correct horse" || cfg.Server.KeyPassphrase != "battery staple" {
		t.Fatal("passphrases must come from the environment")
	}
	lim := cfg.Server.RateLimit.Limiter()
	if !lim.Enabled || lim.RPS != 20 || lim.Burst != 3 {
		t.Fatalf("unexpected limiter config %+v", lim)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("explicit missing file must fail")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Fatal("invalid yaml must fail")
	}
	t.Setenv("OMNI_RATE_LIMIT_RPS", "fast")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "OMNI_RATE_LIMIT_RPS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestValidateRateLimit(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  rateLimit:\n    enabled: true\n    burst: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatal("zero burst with limiting enabled must fail")
	}
}

func TestParseBoolEnv(t *testing.T) {
	for _, raw := range []string{"1", "true", "YES", " on "} {
		if v, err := parseBoolEnv(raw); err != nil || !v {
			t.Fatalf("%q: expected true, got %v %v", raw, v, err)
		}
	}
	for _, raw := range []string{"0", "false", "No", "off"} {
		if v, err := parseBoolEnv(raw); err != nil || v {
			t.Fatalf("%q: expected false, got %v %v", raw, v, err)
		}
	}
	if _, err := parseBoolEnv("maybe"); err == nil {
		t.Fatal("expected error")
	}
}
