package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zoobzio/shroud"
	shroudtest "github.com/zoobzio/shroud/testing"
	"go.uber.org/zap"
)

// run executes the CLI with a fresh configuration and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{v: newViper(), log: zap.NewNop()}
	cmd := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

// workspace writes the fixture tables into a temp dir and points the CLI at it.
func workspace(t *testing.T) (dir, customers, purchases string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("SHROUD_PASSWORD", shroudtest.Password)
	t.Setenv("SHROUD_VAULT_DIR", filepath.Join(dir, "vault"))

	customers = filepath.Join(dir, "customers.json")
	purchases = filepath.Join(dir, "purchases.yaml")
	writeTable(t, customers, shroudtest.CustomerTable())
	writeTable(t, purchases, shroudtest.PurchaseTable())
	return dir, customers, purchases
}

func writeTable(t *testing.T, path string, tbl *shroud.Table) {
	t.Helper()
	if err := writeOutput(nil, path, "", tbl); err != nil {
		t.Fatalf("writeOutput() error: %v", err)
	}
}

func TestClassifyCmd(t *testing.T) {
	_, customers, _ := workspace(t)

	out, err := run(t, "classify", customers)
	if err != nil {
		t.Fatalf("classify error: %v", err)
	}
	for _, want := range []string{`"email"`, `"national_id"`, `"person_name"`} {
		if !strings.Contains(out, want) {
			t.Errorf("classify output missing %s:\n%s", want, out)
		}
	}
}

func TestVaultCmds(t *testing.T) {
	dir, customers, _ := workspace(t)

	out, err := run(t, "store", customers)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	h := strings.TrimSpace(out)
	if _, err := shroud.ParseHandle(h); err != nil {
		t.Fatalf("store printed %q, not a handle", h)
	}

	if out, err := run(t, "verify", h); err != nil || !strings.Contains(out, "ok") {
		t.Errorf("verify = %q, %v", out, err)
	}

	raw := filepath.Join(dir, "raw.json")
	if _, err := run(t, "retrieve", h, "--out", raw); err != nil {
		t.Fatalf("retrieve error: %v", err)
	}
	restored, err := readTable(raw)
	if err != nil {
		t.Fatalf("readTable() error: %v", err)
	}
	if c, _ := restored.Get(0, "email"); c.Value != "john.doe@example.com" {
		t.Errorf("retrieved email = %q", c.Value)
	}
	if info, _ := os.Stat(raw); info.Mode().Perm() != 0o600 {
		t.Errorf("retrieved file mode = %o, want 600", info.Mode().Perm())
	}

	out, err = run(t, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, h) || !strings.Contains(out, "customers") {
		t.Errorf("list output:\n%s", out)
	}

	if _, err := run(t, "delete", h); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := run(t, "delete", h); !errors.Is(err, shroud.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestWrongPassword(t *testing.T) {
	_, customers, _ := workspace(t)

	out, err := run(t, "store", customers)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	h := strings.TrimSpace(out)

	t.Setenv("SHROUD_PASSWORD", "not the password")
	if _, err := run(t, "verify", h); !errors.Is(err, shroud.ErrDecryptionIntegrity) {
		t.Errorf("verify error = %v, want ErrDecryptionIntegrity", err)
	}
	if _, err := run(t, "store", customers); !errors.Is(err, shroud.ErrMasterPassword) {
		t.Errorf("store error = %v, want ErrMasterPassword", err)
	}
}

func TestMaskCmd(t *testing.T) {
	_, customers, _ := workspace(t)

	out, err := run(t, "store", customers)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	h := strings.TrimSpace(out)

	masked, err := run(t, "mask", h)
	if err != nil {
		t.Fatalf("mask error: %v", err)
	}
	if !strings.Contains(masked, "j***@*****.com") || strings.Contains(masked, "john.doe@example.com") {
		t.Errorf("masked output:\n%s", masked)
	}

	revealed, err := run(t, "mask", h, "--reveal", "--format", "yaml")
	if err != nil {
		t.Fatalf("mask --reveal error: %v", err)
	}
	if !strings.Contains(revealed, "john.doe@example.com") {
		t.Errorf("revealed output:\n%s", revealed)
	}
}

func TestProcessAndMergeCmds(t *testing.T) {
	dir, customers, purchases := workspace(t)
	views := filepath.Join(dir, "views")
	if err := os.Mkdir(views, 0o700); err != nil {
		t.Fatalf("Mkdir() error: %v", err)
	}

	out, err := run(t, "process", customers, purchases, "--join-key", "account_id", "--out-dir", views)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Errorf("process output:\n%s", out)
	}

	left := filepath.Join(views, "customers.pseudonymized.json")
	right := filepath.Join(views, "purchases.pseudonymized.json")
	merged := filepath.Join(dir, "merged.json")
	if _, err := run(t, "merge", left, right, "--key", "account_id", "--strategy", "left", "--out", merged); err != nil {
		t.Fatalf("merge error: %v", err)
	}

	tbl, err := readTable(merged)
	if err != nil {
		t.Fatalf("readTable() error: %v", err)
	}
	if tbl.Len() != shroudtest.MatchedPurchases || tbl.Mode() != shroud.ModePseudonymized {
		t.Errorf("merged = %d rows, mode %s", tbl.Len(), tbl.Mode())
	}

	// Pseudonymized and masked views cannot be merged.
	maskedView := filepath.Join(views, "purchases.masked.json")
	if _, err := run(t, "merge", left, maskedView, "--key", "account_id"); !errors.Is(err, shroud.ErrPrivacyModeMismatch) {
		t.Errorf("mixed merge error = %v, want ErrPrivacyModeMismatch", err)
	}
}

func TestConfigFile(t *testing.T) {
	dir, customers, _ := workspace(t)
	t.Setenv("SHROUD_VAULT_DIR", "")

	vaultDir := filepath.Join(dir, "from-config")
	cfgPath := filepath.Join(dir, "shroud.yaml")
	if err := os.WriteFile(cfgPath, []byte("vault-dir: "+vaultDir+"\nlog-level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	if _, err := run(t, "--config", cfgPath, "store", customers); err != nil {
		t.Fatalf("store error: %v", err)
	}
	entries, err := os.ReadDir(vaultDir)
	if err != nil || len(entries) == 0 {
		t.Errorf("vault dir from config not used: %v", err)
	}
}

func TestInvalidInvocations(t *testing.T) {
	_, customers, _ := workspace(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"classify", customers, "--format", "xml"}},
		{"bad handle", []string{"verify", "../etc/passwd"}},
		{"missing key", []string{"merge", customers, customers}},
		{"bad log level", []string{"list", "--log-level", "loud"}},
		{"low iterations", []string{"store", customers, "--iterations", "10"}},
		{"missing file", []string{"classify", filepath.Join(t.TempDir(), "none.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestNoPassword(t *testing.T) {
	_, customers, _ := workspace(t)
	t.Setenv("SHROUD_PASSWORD", "")

	if _, err := run(t, "store", customers); !errors.Is(err, errNoPassword) {
		t.Errorf("store error = %v, want errNoPassword", err)
	}
}
