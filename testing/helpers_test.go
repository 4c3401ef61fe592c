package testing

import (
	"testing"

	"github.com/zoobzio/shroud"
)

func TestHKID(t *testing.T) {
	tests := []struct {
		prefix, digits, want string
	}{
		{"A", "123456", "A123456(3)"},
		{"AB", "987654", "AB987654(3)"},
		{"G", "123456", "G123456(A)"},
	}
	for _, tt := range tests {
		if got := HKID(tt.prefix, tt.digits); got != tt.want {
			t.Errorf("HKID(%q, %q) = %q, want %q", tt.prefix, tt.digits, got, tt.want)
		}
		if !shroud.ValidHKID(HKID(tt.prefix, tt.digits)) {
			t.Errorf("ValidHKID(HKID(%q, %q)) = false", tt.prefix, tt.digits)
		}
	}
}

func TestCustomerTable(t *testing.T) {
	c := CustomerTable()
	if c.Len() != Customers {
		t.Fatalf("Len() = %d, want %d", c.Len(), Customers)
	}
	if c.Mode() != shroud.ModeRaw {
		t.Errorf("Mode() = %q, want raw", c.Mode())
	}

	first := c.Rows[0]
	if first[0].Value != "ACC001" || first[1].Value != "John Doe" || first[2].Value != "john.doe@example.com" {
		t.Errorf("first customer = %v", first)
	}

	for i := range c.Rows {
		hkid, _ := c.Get(i, "hkid")
		if !shroud.ValidHKID(hkid.Value) {
			t.Errorf("row %d hkid %q has a bad check digit", i, hkid.Value)
		}
	}
}

func TestPurchaseTable(t *testing.T) {
	p := PurchaseTable()
	if p.Len() != Purchases {
		t.Fatalf("Len() = %d, want %d", p.Len(), Purchases)
	}

	known := 0
	for i := range p.Rows {
		acct, _ := p.Get(i, "account_id")
		for n := 1; n <= Customers; n++ {
			if acct.Value == AccountID(n) {
				known++
				break
			}
		}
	}
	if known != MatchedPurchases {
		t.Errorf("purchases with known accounts = %d, want %d", known, MatchedPurchases)
	}
}

func TestCustomerRecords(t *testing.T) {
	recs := CustomerRecords(3)
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	if recs[0].Phone == nil || *recs[0].Phone == "" {
		t.Error("Phone should be set")
	}
}

func TestMemVault(t *testing.T) {
	v, fs := MemVault(t)
	if v == nil || fs == nil {
		t.Fatal("MemVault() should not return nil")
	}
}

func TestSession(t *testing.T) {
	s := Session(t, "account_id")
	if !s.IsJoinKey("account_id") {
		t.Error("account_id should be a join key")
	}
}
