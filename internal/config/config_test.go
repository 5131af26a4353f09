package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got: %v", err)
	}

	if cfg.DNS.Port != 53 || cfg.Proxy.Port != 8080 || cfg.API.Port != 8000 {
		t.Errorf("Unexpected default ports: dns=%d proxy=%d api=%d", cfg.DNS.Port, cfg.Proxy.Port, cfg.API.Port)
	}
	if cfg.Firewall.FwMark != 1 {
		t.Errorf("Expected default fwmark 1, got %d", cfg.Firewall.FwMark)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DNS.Upstream != "8.8.8.8" {
		t.Errorf("Expected default upstream, got %s", cfg.DNS.Upstream)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearthgate.conf")
	content := `
[general]
data_dir = "/tmp/hg-data"
logs_dir = "/tmp/hg-logs"
log_level = "debug"

[dns]
port = 5353
upstream = "1.1.1.1"
cache_max_entries = 500
query_log_file = "queries.log"

[proxy]
port = 9090
dial_timeout_seconds = 5

[api]
port = 9000

[firewall]
fwmark = 7
table = 150
priority = 200

[[firewall.extra_rule]]
table = "filter"
chain = "FORWARD"
rule = ["-p", "tcp", "--dport", "{{proxy_port}}", "-j", "ACCEPT"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.DNS.Port != 5353 || cfg.DNS.Upstream != "1.1.1.1" {
		t.Errorf("Unexpected DNS config: %+v", cfg.DNS)
	}
	if cfg.Proxy.Port != 9090 || cfg.API.Port != 9000 {
		t.Errorf("Unexpected ports: proxy=%d api=%d", cfg.Proxy.Port, cfg.API.Port)
	}
	if cfg.Firewall.FwMark != 7 || cfg.Firewall.RouteTable != 150 || cfg.Firewall.RulePriority != 200 {
		t.Errorf("Unexpected firewall config: %+v", cfg.Firewall)
	}
	if len(cfg.Firewall.ExtraRules) != 1 || cfg.Firewall.ExtraRules[0].Chain != "FORWARD" {
		t.Errorf("Unexpected extra rules: %+v", cfg.Firewall.ExtraRules)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DNS_PORT", "1053")
	t.Setenv("DNS_UPSTREAM", "9.9.9.9")
	t.Setenv("API_PORT", "8081")
	t.Setenv("PROXY_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.conf"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.DNS.Port != 1053 {
		t.Errorf("Expected DNS port 1053, got %d", cfg.DNS.Port)
	}
	if cfg.DNS.Upstream != "9.9.9.9" {
		t.Errorf("Expected upstream 9.9.9.9, got %s", cfg.DNS.Upstream)
	}
	if cfg.API.Port != 8081 {
		t.Errorf("Expected API port 8081, got %d", cfg.API.Port)
	}
	if cfg.Proxy.Port != 9000 {
		t.Errorf("Expected proxy port 9000, got %d", cfg.Proxy.Port)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.General.LogLevel)
	}
}

func TestLoadConfig_InvalidPortEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Not a number", "banana"},
		{"Zero", "0"},
		{"Too large", "70000"},
		{"Negative", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROXY_PORT", tt.value)

			if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.conf")); err == nil {
				t.Errorf("Expected error for PROXY_PORT=%q", tt.value)
			}
		})
	}
}

func TestValidate_RejectsPortCollision(t *testing.T) {
	cfg := Default()
	cfg.Proxy.Port = 8000
	cfg.API.Port = 8000

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when proxy and API share a port")
	}
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.General.LogLevel = "loud"

	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for invalid log level")
	}
}

func TestQueryLogPath(t *testing.T) {
	cfg := Default()
	cfg.General.LogsDir = "/var/log/hearthgate"
	cfg.DNS.QueryLogFile = "dns.log"

	if got := cfg.QueryLogPath(); got != "/var/log/hearthgate/dns.log" {
		t.Errorf("Expected /var/log/hearthgate/dns.log, got %s", got)
	}
}

func TestSerializeConfig_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.DNS.Port = 5353

	buf, err := cfg.SerializeConfig()
	if err != nil {
		t.Fatalf("SerializeConfig failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.conf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.DNS.Port != 5353 {
		t.Errorf("Expected DNS port to survive round trip, got %d", loaded.DNS.Port)
	}
}
