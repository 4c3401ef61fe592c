package integration

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"testing"

	"github.com/zoobzio/shroud"
	shroudtest "github.com/zoobzio/shroud/testing"
)

type components struct {
	classifier    *shroud.Classifier
	pseudonymizer *shroud.Pseudonymizer
	masker        *shroud.DisplayMasker
	vault         *shroud.Vault
	pipeline      *shroud.Pipeline
}

func setup(t *testing.T, opts ...shroud.VaultOption) *components {
	t.Helper()
	c, err := shroud.NewClassifier()
	if err != nil {
		t.Fatalf("NewClassifier error: %v", err)
	}
	p, err := shroud.NewPseudonymizer()
	if err != nil {
		t.Fatalf("NewPseudonymizer error: %v", err)
	}
	m, err := shroud.NewDisplayMasker()
	if err != nil {
		t.Fatalf("NewDisplayMasker error: %v", err)
	}
	v, _ := shroudtest.MemVault(t, opts...)
	pl, err := shroud.NewPipeline(c, p, m, v)
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return &components{classifier: c, pseudonymizer: p, masker: m, vault: v, pipeline: pl}
}

// Customer 1's email is tokenized for external use, masked for display and
// recoverable only from the vault.
func TestScenario_CustomerEmail(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	s := shroudtest.Session(t, "account_id")

	res, err := env.pipeline.Process(ctx, s, shroudtest.CustomerTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if d := res.Descriptors["email"]; d.Type != shroud.Email || d.Confidence < 0.5 {
		t.Errorf("email descriptor = %+v", d)
	}

	token, _ := res.Pseudonymized.Get(0, "email")
	if len(token.Value) != 10 {
		t.Errorf("token length = %d, want 10", len(token.Value))
	}
	if _, err := hex.DecodeString(token.Value); err != nil {
		t.Errorf("token %q is not hex", token.Value)
	}
	if token.Value == "john.doe@example.com" {
		t.Error("token equals the raw email")
	}

	masked, err := env.pipeline.Reveal(ctx, res.Handle, shroudtest.Password, res.Descriptors, false)
	if err != nil {
		t.Fatalf("Reveal(false) error: %v", err)
	}
	if c, _ := masked.Get(0, "email"); c.Value != "j***@*****.com" {
		t.Errorf("masked email = %q, want j***@*****.com", c.Value)
	}

	revealed, err := env.pipeline.Reveal(ctx, res.Handle, shroudtest.Password, res.Descriptors, true)
	if err != nil {
		t.Fatalf("Reveal(true) error: %v", err)
	}
	if c, _ := revealed.Get(0, "email"); c.Value != "john.doe@example.com" {
		t.Errorf("revealed email = %q", c.Value)
	}

	// Only the pseudonymized and masked views may leave the process.
	if _, err := shroud.Release(revealed); !errors.Is(err, shroud.ErrUnprotected) {
		t.Errorf("Release(revealed) error = %v, want ErrUnprotected", err)
	}
	if _, err := shroud.Release(res.Pseudonymized); err != nil {
		t.Errorf("Release(pseudonymized) error: %v", err)
	}
}

// Pseudonymized customers and purchases still join on account_id.
func TestScenario_PseudonymizedMerge(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	s := shroudtest.Session(t, "account_id")

	customers, err := env.pipeline.Process(ctx, s, shroudtest.CustomerTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process(customers) error: %v", err)
	}
	purchases, err := env.pipeline.Process(ctx, s, shroudtest.PurchaseTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process(purchases) error: %v", err)
	}

	res, err := shroud.Merge(ctx, customers.Pseudonymized, purchases.Pseudonymized,
		"account_id", shroud.MergeLeft, shroud.ModePseudonymized)
	if err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	if math.Abs(res.QualityScore-0.80) > 0.01 {
		t.Errorf("QualityScore = %.3f, want ~0.80", res.QualityScore)
	}
	if res.Matched != shroudtest.MatchedPurchases {
		t.Errorf("Matched = %d, want %d", res.Matched, shroudtest.MatchedPurchases)
	}
	if res.Unmatched.Right != shroudtest.UnmatchedPurchases {
		t.Errorf("Unmatched.Right = %d, want %d", res.Unmatched.Right, shroudtest.UnmatchedPurchases)
	}
	if _, err := shroud.Release(res.Table); err != nil {
		t.Errorf("Release(merged) error: %v", err)
	}

	// Mixing views is refused.
	_, err = shroud.Merge(ctx, customers.Pseudonymized, purchases.Masked,
		"account_id", shroud.MergeLeft, shroud.ModePseudonymized)
	if !errors.Is(err, shroud.ErrPrivacyModeMismatch) {
		t.Errorf("Merge(mixed) error = %v, want ErrPrivacyModeMismatch", err)
	}
}

// Sessions are unlinkable: the same customer tokenizes differently per session.
func TestScenario_SessionsUnlinkable(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	a, err := env.pipeline.Process(ctx, shroudtest.Session(t, "account_id"), shroudtest.CustomerTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	b, err := env.pipeline.Process(ctx, shroudtest.Session(t, "account_id"), shroudtest.CustomerTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	for _, col := range []string{"account_id", "email", "name"} {
		ta, _ := a.Pseudonymized.Get(0, col)
		tb, _ := b.Pseudonymized.Get(0, col)
		if ta == tb {
			t.Errorf("%s tokens match across sessions", col)
		}
	}

	_, err = shroud.Merge(ctx, a.Pseudonymized, b.Pseudonymized, "account_id", shroud.MergeInner, shroud.ModePseudonymized)
	if !errors.Is(err, shroud.ErrSessionMismatch) {
		t.Errorf("Merge(across sessions) error = %v, want ErrSessionMismatch", err)
	}
}

// A deleted record set can no longer be revealed.
func TestScenario_DeletedRecordSet(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	res, err := env.pipeline.Process(ctx, shroudtest.Session(t), shroudtest.CustomerTable(), shroudtest.Password)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if _, err := env.vault.Delete(ctx, res.Handle); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := env.pipeline.Reveal(ctx, res.Handle, shroudtest.Password, res.Descriptors, true); !errors.Is(err, shroud.ErrNotFound) {
		t.Errorf("Reveal(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestScenario_Codecs(t *testing.T) {
	for _, name := range []string{"json", "yaml", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := shroud.CodecFor(name)
			if err != nil {
				t.Fatalf("CodecFor error: %v", err)
			}
			env := setup(t, shroud.WithCodec(codec))
			ctx := context.Background()

			res, err := env.pipeline.Process(ctx, shroudtest.Session(t), shroudtest.PurchaseTable(), shroudtest.Password)
			if err != nil {
				t.Fatalf("Process error: %v", err)
			}
			raw, err := env.vault.Retrieve(ctx, res.Handle, shroudtest.Password)
			if err != nil {
				t.Fatalf("Retrieve error: %v", err)
			}
			if raw.Len() != shroudtest.Purchases {
				t.Errorf("rows = %d, want %d", raw.Len(), shroudtest.Purchases)
			}
			if c, _ := raw.Get(0, "purchase_id"); c.Value != "P0001" {
				t.Errorf("purchase_id = %q", c.Value)
			}
		})
	}
}
