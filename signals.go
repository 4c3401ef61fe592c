package shroud

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for privacy events. Fields never carry cell values, salts or keys.
var (
	SignalClassifyComplete     = capitan.NewSignal("shroud.classify.complete", "Table classification finished")
	SignalPseudonymizeComplete = capitan.NewSignal("shroud.pseudonymize.complete", "Pseudonymization finished")
	SignalVaultStore           = capitan.NewSignal("shroud.vault.store", "Record set encrypted and stored")
	SignalVaultRetrieve        = capitan.NewSignal("shroud.vault.retrieve", "Record set decrypted and returned")
	SignalVaultDelete          = capitan.NewSignal("shroud.vault.delete", "Record set securely deleted")
	SignalVaultDenied          = capitan.NewSignal("shroud.vault.denied", "Vault access denied")
	SignalMaskComplete         = capitan.NewSignal("shroud.mask.complete", "Display masking finished")
	SignalMergeComplete        = capitan.NewSignal("shroud.merge.complete", "Merge finished")
)

// Keys for typed event data.
var (
	KeyTable          = capitan.NewStringKey("table")
	KeyHandle         = capitan.NewStringKey("handle")
	KeySession        = capitan.NewStringKey("session")
	KeyReason         = capitan.NewStringKey("reason")
	KeyMode           = capitan.NewStringKey("mode")
	KeyStrategy       = capitan.NewStringKey("strategy")
	KeyKeyDerivation  = capitan.NewStringKey("key_derivation")
	KeyColumns        = capitan.NewIntKey("columns")
	KeyRows           = capitan.NewIntKey("rows")
	KeySize           = capitan.NewIntKey("size")
	KeySensitiveCount = capitan.NewIntKey("sensitive_count")
	KeyAmbiguousCount = capitan.NewIntKey("ambiguous_count")
	KeyTokenizedCount = capitan.NewIntKey("tokenized_count")
	KeyFailedCount    = capitan.NewIntKey("failed_count")
	KeyMaskedCount    = capitan.NewIntKey("masked_count")
	KeyRedactedCount  = capitan.NewIntKey("redacted_count")
	KeyAccessCount    = capitan.NewIntKey("access_count")
	KeyMatched        = capitan.NewIntKey("matched")
	KeyUnmatchedLeft  = capitan.NewIntKey("unmatched_left")
	KeyUnmatchedRight = capitan.NewIntKey("unmatched_right")
	KeyDuration       = capitan.NewDurationKey("duration")
	KeyError          = capitan.NewErrorKey("error")
)

// Denial reasons reported on SignalVaultDenied.
const (
	reasonWrongPassword = "wrong_password"
	reasonAuthTag       = "auth_tag"
	reasonDigest        = "digest"
	reasonMalformed     = "malformed"
)

// emitClassifyComplete emits an event when a table has been classified.
func emitClassifyComplete(ctx context.Context, table string, columns, sensitive, ambiguous int, duration time.Duration) {
	capitan.Emit(ctx, SignalClassifyComplete,
		KeyTable.Field(table),
		KeyColumns.Field(columns),
		KeySensitiveCount.Field(sensitive),
		KeyAmbiguousCount.Field(ambiguous),
		KeyDuration.Field(duration),
	)
}

// emitPseudonymizeComplete emits an event when pseudonymization finishes.
// Cell failures are reported at error level.
func emitPseudonymizeComplete(ctx context.Context, table, session string, tokenized, failed int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTable.Field(table),
		KeySession.Field(session),
		KeyTokenizedCount.Field(tokenized),
		KeyFailedCount.Field(failed),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalPseudonymizeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalPseudonymizeComplete, fields...)
	}
}

// emitVaultStore emits an event when a store finishes.
func emitVaultStore(ctx context.Context, h Handle, kdf string, rows, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyHandle.Field(string(h)),
		KeyKeyDerivation.Field(kdf),
		KeyRows.Field(rows),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalVaultStore, fields...)
	} else {
		capitan.Emit(ctx, SignalVaultStore, fields...)
	}
}

// emitVaultRetrieve emits an event after a successful retrieve.
func emitVaultRetrieve(ctx context.Context, h Handle, rows, accessCount int, duration time.Duration) {
	capitan.Emit(ctx, SignalVaultRetrieve,
		KeyHandle.Field(string(h)),
		KeyRows.Field(rows),
		KeyAccessCount.Field(accessCount),
		KeyDuration.Field(duration),
	)
}

// emitVaultDelete emits an event when a delete finishes.
func emitVaultDelete(ctx context.Context, h Handle, err error) {
	if err != nil {
		capitan.Error(ctx, SignalVaultDelete, KeyHandle.Field(string(h)), KeyError.Field(err))
		return
	}
	capitan.Emit(ctx, SignalVaultDelete, KeyHandle.Field(string(h)))
}

// emitVaultDenied emits the reason behind an integrity failure.
// Callers only ever see ErrDecryptionIntegrity.
func emitVaultDenied(ctx context.Context, h Handle, reason string) {
	capitan.Error(ctx, SignalVaultDenied,
		KeyHandle.Field(string(h)),
		KeyReason.Field(reason),
	)
}

// emitMaskComplete emits an event when a masked or revealed view is produced.
func emitMaskComplete(ctx context.Context, table string, mode PrivacyMode, masked, redacted int, duration time.Duration) {
	capitan.Emit(ctx, SignalMaskComplete,
		KeyTable.Field(table),
		KeyMode.Field(string(mode)),
		KeyMaskedCount.Field(masked),
		KeyRedactedCount.Field(redacted),
		KeyDuration.Field(duration),
	)
}

// emitMergeComplete emits an event when a merge finishes.
func emitMergeComplete(ctx context.Context, r *MergeResult, duration time.Duration) {
	capitan.Emit(ctx, SignalMergeComplete,
		KeyStrategy.Field(string(r.Strategy)),
		KeyMode.Field(string(r.Mode)),
		KeyRows.Field(r.Table.Len()),
		KeyMatched.Field(r.Matched),
		KeyUnmatchedLeft.Field(r.Unmatched.Left),
		KeyUnmatchedRight.Field(r.Unmatched.Right),
		KeyDuration.Field(duration),
	)
}
