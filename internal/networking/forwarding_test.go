package networking

import (
	"os"
	"path/filepath"
	"testing"
)

func withFakeSysctl(t *testing.T, initial string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ip_forward")
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to seed sysctl file: %v", err)
	}

	orig := ipForwardPath
	ipForwardPath = path
	t.Cleanup(func() { ipForwardPath = orig })
	return path
}

func TestEnableForwarding(t *testing.T) {
	path := withFakeSysctl(t, "0\n")

	if err := EnableForwarding(); err != nil {
		t.Fatalf("EnableForwarding failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read sysctl file: %v", err)
	}
	if string(data) != "1\n" {
		t.Errorf("Expected sysctl file to contain %q, got %q", "1\n", string(data))
	}

	enabled, err := IsForwardingEnabled()
	if err != nil {
		t.Fatalf("IsForwardingEnabled failed: %v", err)
	}
	if !enabled {
		t.Error("Expected forwarding to report enabled")
	}
}

func TestEnableForwarding_AlreadyEnabled(t *testing.T) {
	withFakeSysctl(t, "1\n")

	if err := EnableForwarding(); err != nil {
		t.Fatalf("EnableForwarding failed: %v", err)
	}
}

func TestIsForwardingEnabled_Disabled(t *testing.T) {
	withFakeSysctl(t, "0\n")

	enabled, err := IsForwardingEnabled()
	if err != nil {
		t.Fatalf("IsForwardingEnabled failed: %v", err)
	}
	if enabled {
		t.Error("Expected forwarding to report disabled")
	}
}
