package shroud

import (
	"errors"
	"testing"
	"time"
)

func TestPrivacyMetadata_Protected(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		meta func() PrivacyMetadata
		want bool
	}{
		{"raw", func() PrivacyMetadata { return PrivacyMetadata{Mode: ModeRaw} }, false},
		{"empty", func() PrivacyMetadata { return PrivacyMetadata{} }, false},
		{"pseudonymized without record", func() PrivacyMetadata {
			return PrivacyMetadata{Mode: ModePseudonymized}
		}, false},
		{"pseudonymized", func() PrivacyMetadata {
			m := PrivacyMetadata{Mode: ModePseudonymized}
			m.record(TransformPseudonymize, now, nil)
			return m
		}, true},
		{"masked with wrong record", func() PrivacyMetadata {
			m := PrivacyMetadata{Mode: ModeMasked}
			m.record(TransformPseudonymize, now, nil)
			return m
		}, false},
		{"masked", func() PrivacyMetadata {
			m := PrivacyMetadata{Mode: ModeMasked}
			m.record(TransformMask, now, nil)
			return m
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.meta().Protected(); got != tt.want {
				t.Errorf("Protected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrivacyMetadata_Record(t *testing.T) {
	var m PrivacyMetadata
	local := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("HKT", 8*3600))
	m.record(TransformMerge, local, []string{"account_id"})

	if !m.Applied(TransformMerge) {
		t.Error("Applied(merge) should be true")
	}
	if m.Applied(TransformMask) {
		t.Error("Applied(mask) should be false")
	}
	if m.Transforms[0].AppliedAt.Location() != time.UTC {
		t.Error("record() should store UTC times")
	}
	if !m.AppliedTo(TransformMerge, "account_id") || m.AppliedTo(TransformMerge, "email") {
		t.Error("AppliedTo() should match only the recorded columns")
	}
	if m.AppliedTo(TransformMask, "account_id") {
		t.Error("AppliedTo(mask) should be false")
	}
}

func TestPrivacyMetadata_Flag(t *testing.T) {
	var m PrivacyMetadata
	m.flag(3)
	m.flag(1)
	m.flag(3)
	if len(m.FlaggedRows) != 2 {
		t.Errorf("FlaggedRows = %v, want two unique rows", m.FlaggedRows)
	}
}

func TestRelease(t *testing.T) {
	raw := NewTable("t", Column{Name: "a"})
	if _, err := Release(raw); !errors.Is(err, ErrUnprotected) {
		t.Errorf("Release(raw) error = %v, want ErrUnprotected", err)
	}
	if _, err := Release(nil); !errors.Is(err, ErrUnprotected) {
		t.Errorf("Release(nil) error = %v, want ErrUnprotected", err)
	}

	// A mode label alone is not enough.
	forged := NewTable("t", Column{Name: "a"})
	forged.Privacy.Mode = ModePseudonymized
	if _, err := Release(forged); !errors.Is(err, ErrUnprotected) {
		t.Errorf("Release(forged) error = %v, want ErrUnprotected", err)
	}

	masked := NewTable("t", Column{Name: "a"})
	masked.Privacy.Mode = ModeMasked
	masked.Privacy.record(TransformMask, time.Now(), []string{"a"})
	out, err := Release(masked)
	if err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if out == masked {
		t.Error("Release() should return a copy")
	}
}
