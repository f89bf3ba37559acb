package mqttstatus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateClientIDIsUniqueAndPrefixed(t *testing.T) {
	a := generateClientID()
	b := generateClientID()
	if !strings.HasPrefix(a, "sdrcore_") || !strings.HasPrefix(b, "sdrcore_") {
		t.Fatalf("client IDs %q / %q missing sdrcore_ prefix", a, b)
	}
	if a == b {
		t.Error("expected two distinct client IDs")
	}
}

func TestLoadTLSConfigDisabled(t *testing.T) {
	tc, err := loadTLSConfig(TLSConfig{Enabled: false})
	if err != nil {
		t.Fatalf("loadTLSConfig: %v", err)
	}
	if tc != nil {
		t.Error("expected nil tls.Config when TLS is disabled")
	}
}

func TestLoadTLSConfigMissingCACert(t *testing.T) {
	_, err := loadTLSConfig(TLSConfig{Enabled: true, CACert: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatal("expected error for a missing CA cert file")
	}
}

func TestLoadTLSConfigInvalidCACertContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := loadTLSConfig(TLSConfig{Enabled: true, CACert: path}); err == nil {
		t.Fatal("expected error for malformed CA cert PEM")
	}
}

func TestLoadTLSConfigMissingClientKeyPair(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "client.crt")
	if err := os.WriteFile(certPath, []byte("bogus"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := loadTLSConfig(TLSConfig{
		Enabled:    true,
		ClientCert: certPath,
		ClientKey:  filepath.Join(dir, "client.key"),
	})
	if err == nil {
		t.Fatal("expected error for a missing/invalid client key pair")
	}
}
