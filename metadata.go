package shroud

import (
	"time"

	"github.com/samber/lo"
)

// Transform names a privacy transform applied to a record set.
type Transform string

const (
	TransformClassify     Transform = "classify"
	TransformPseudonymize Transform = "pseudonymize"
	TransformMask         Transform = "mask"
	TransformReveal       Transform = "reveal"
	TransformMerge        Transform = "merge"
)

// TransformRecord records one applied transform.
type TransformRecord struct {
	Kind      Transform `json:"kind" yaml:"kind" msgpack:"kind"`
	AppliedAt time.Time `json:"applied_at" yaml:"applied_at" msgpack:"applied_at"`
	Columns   []string  `json:"columns,omitempty" yaml:"columns,omitempty" msgpack:"columns,omitempty"`
}

// PrivacyMetadata travels with every table and records how it was derived.
type PrivacyMetadata struct {
	Mode        PrivacyMode       `json:"mode" yaml:"mode" msgpack:"mode"`
	SessionID   string            `json:"session_id,omitempty" yaml:"session_id,omitempty" msgpack:"session_id,omitempty"`
	Transforms  []TransformRecord `json:"transforms,omitempty" yaml:"transforms,omitempty" msgpack:"transforms,omitempty"`
	FlaggedRows []int             `json:"flagged_rows,omitempty" yaml:"flagged_rows,omitempty" msgpack:"flagged_rows,omitempty"`
}

// Clone returns a deep copy.
func (m PrivacyMetadata) Clone() PrivacyMetadata {
	clone := PrivacyMetadata{
		Mode:      m.Mode,
		SessionID: m.SessionID,
	}
	if m.Transforms != nil {
		clone.Transforms = make([]TransformRecord, len(m.Transforms))
		for i, r := range m.Transforms {
			clone.Transforms[i] = TransformRecord{
				Kind:      r.Kind,
				AppliedAt: r.AppliedAt,
				Columns:   append([]string(nil), r.Columns...),
			}
		}
	}
	if m.FlaggedRows != nil {
		clone.FlaggedRows = append([]int(nil), m.FlaggedRows...)
	}
	return clone
}

// Applied reports whether the transform was recorded.
func (m PrivacyMetadata) Applied(kind Transform) bool {
	return lo.ContainsBy(m.Transforms, func(r TransformRecord) bool { return r.Kind == kind })
}

// AppliedTo reports whether the transform was recorded for column.
func (m PrivacyMetadata) AppliedTo(kind Transform, column string) bool {
	return lo.ContainsBy(m.Transforms, func(r TransformRecord) bool {
		return r.Kind == kind && lo.Contains(r.Columns, column)
	})
}

// Protected reports whether the metadata allows the table to leave the
// local trust boundary.
func (m PrivacyMetadata) Protected() bool {
	switch m.Mode {
	case ModePseudonymized:
		return m.Applied(TransformPseudonymize)
	case ModeMasked:
		return m.Applied(TransformMask)
	default:
		return false
	}
}

// record appends a transform record stamped with now.
func (m *PrivacyMetadata) record(kind Transform, now time.Time, columns []string) {
	m.Transforms = append(m.Transforms, TransformRecord{
		Kind:      kind,
		AppliedAt: now.UTC(),
		Columns:   columns,
	})
}

// flag marks a row once.
func (m *PrivacyMetadata) flag(row int) {
	if lo.Contains(m.FlaggedRows, row) {
		return
	}
	m.FlaggedRows = append(m.FlaggedRows, row)
}

// Release is the trust-boundary gate. It returns a clone of t when t is
// pseudonymized or masked and carries the matching transform record, and
// ErrUnprotected otherwise. Every table handed to an LLM prompt builder or
// export consumer must pass through Release.
func Release(t *Table) (*Table, error) {
	if t == nil || !t.Privacy.Protected() {
		return nil, ErrUnprotected
	}
	return t.Clone(), nil
}
