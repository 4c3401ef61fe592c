// Package shroud provides a privacy-preserving data layer for tabular
// customer records.
//
// Raw record sets never leave the local trust boundary. The package derives
// three representations of every table and records which one a table holds
// in its PrivacyMetadata:
//
//   - raw: original values, encrypted at rest in the Vault
//   - pseudonymized: irreversible salted tokens, safe for external reasoning services
//   - masked: partial redaction for local display
//
// # Components
//
// A Classifier scores every column against keyword and value rules and
// yields Descriptors. A Pseudonymizer replaces sensitive cells with
// hex(sha256(value || salt)) tokens using per-column salts from a Session.
// The Vault stores raw tables with AES-256-GCM under a password-derived key.
// A DisplayMasker renders masked or revealed views from a Source on every
// call. Merge joins two tables that are in the same privacy mode.
//
// # Basic Usage
//
//	classifier, _ := shroud.NewClassifier()
//	pseudonymizer, _ := shroud.NewPseudonymizer()
//	masker, _ := shroud.NewDisplayMasker()
//	vault, _ := shroud.NewVault("/var/lib/shroud")
//
//	pipeline, _ := shroud.NewPipeline(classifier, pseudonymizer, masker, vault)
//
//	session, _ := shroud.NewSession()
//	defer session.Close()
//	session.MarkJoinKey("account_id")
//
//	customers, _ := pipeline.Process(ctx, session, customerTable, password)
//	purchases, _ := pipeline.Process(ctx, session, purchaseTable, password)
//
//	merged, _ := shroud.Merge(ctx, customers.Pseudonymized, purchases.Pseudonymized,
//	    "account_id", shroud.MergeLeft, shroud.ModePseudonymized)
//
//	// Only protected tables pass the gate.
//	safe, err := shroud.Release(merged.Table)
//
// # Typed Records
//
// Struct types can pin classifications with tags:
//
//	type Customer struct {
//	    AccountID string `column:"account_id" pii:"identifier"`
//	    Email     string `pii:"email"`
//	    Notes     string `column:"-"`
//	}
//
//	table, _ := shroud.FromRecords("customers", customers)
//	pinned, _ := shroud.TypedDescriptors[Customer]()
//
// # Observability
//
// Operations emit capitan signals (shroud.vault.denied, shroud.merge.complete,
// and others). Signal fields never carry cell values, salts or keys.
package shroud
