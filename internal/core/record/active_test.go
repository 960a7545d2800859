package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	deletedAt := now.Add(-time.Hour)

	tests := []struct {
		name string
		rec  *Record
		want bool
	}{
		{
			name: "nil record",
			rec:  nil,
			want: false,
		},
		{
			name: "unit without deletion",
			rec:  &Record{Kind: KindUnit},
			want: true,
		},
		{
			name: "deleted position",
			rec:  &Record{Kind: KindPosition, DeletedAt: &deletedAt},
			want: false,
		},
		{
			name: "sanction inside period",
			rec:  &Record{Kind: KindSanction, EffectiveFrom: date(2025, 1, 1), EffectiveUntil: date(2025, 1, 31)},
			want: true,
		},
		{
			name: "sanction on last day is inclusive",
			rec:  &Record{Kind: KindSanction, EffectiveFrom: date(2025, 1, 1), EffectiveUntil: date(2025, 1, 15)},
			want: true,
		},
		{
			name: "sanction open ended",
			rec:  &Record{Kind: KindSanction, EffectiveFrom: date(2024, 12, 1)},
			want: true,
		},
		{
			name: "sanction not started",
			rec:  &Record{Kind: KindSanction, EffectiveFrom: date(2025, 2, 1)},
			want: false,
		},
		{
			name: "sanction expired",
			rec:  &Record{Kind: KindSanction, EffectiveFrom: date(2024, 1, 1), EffectiveUntil: date(2025, 1, 14)},
			want: false,
		},
		{
			name: "absence requires approval",
			rec:  &Record{Kind: KindAbsence, EffectiveFrom: date(2025, 1, 1)},
			want: false,
		},
		{
			name: "absence rejected",
			rec:  &Record{Kind: KindAbsence, EffectiveFrom: date(2025, 1, 1), Approved: boolPtr(false)},
			want: false,
		},
		{
			name: "absence approved",
			rec:  &Record{Kind: KindAbsence, EffectiveFrom: date(2025, 1, 1), Approved: boolPtr(true)},
			want: true,
		},
		{
			name: "absence deactivated",
			rec:  &Record{Kind: KindAbsence, EffectiveFrom: date(2025, 1, 1), Approved: boolPtr(true), DeactivatedAt: &deletedAt},
			want: false,
		},
		{
			name: "temporal without start is malformed",
			rec:  &Record{Kind: KindSanction},
			want: false,
		},
		{
			name: "unknown kind",
			rec:  &Record{Kind: "bogus"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeActive(tt.rec, now))
		})
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	assert.True(t, Overlaps(date(2025, 1, 1), date(2025, 1, 31), date(2025, 1, 10), date(2025, 1, 20)))
	assert.True(t, Overlaps(date(2025, 1, 1), nil, date(2030, 1, 1), nil))
	assert.True(t, Overlaps(date(2025, 1, 1), date(2025, 1, 10), date(2025, 1, 10), date(2025, 1, 12)))
	assert.False(t, Overlaps(date(2025, 1, 1), date(2025, 1, 9), date(2025, 1, 10), date(2025, 1, 12)))
	assert.False(t, Overlaps(nil, nil, date(2025, 1, 10), nil))
}

func TestDurationDays(t *testing.T) {
	t.Parallel()

	days, ok := DurationDays(date(2025, 1, 10), date(2025, 1, 20))
	assert.True(t, ok)
	assert.Equal(t, 11, days)

	_, ok = DurationDays(date(2025, 1, 10), nil)
	assert.False(t, ok)

	_, ok = DurationDays(date(2025, 1, 10), date(2025, 1, 1))
	assert.False(t, ok)
}

func TestClone_IsDeep(t *testing.T) {
	t.Parallel()

	subjectID := "p-1"
	orig := &Record{Kind: KindAbsence, SubjectID: &subjectID, EffectiveFrom: date(2025, 1, 1), Approved: boolPtr(true)}
	clone := orig.Clone()

	*clone.SubjectID = "p-2"
	*clone.Approved = false
	*clone.EffectiveFrom = time.Time{}

	assert.Equal(t, "p-1", *orig.SubjectID)
	assert.True(t, *orig.Approved)
	assert.Equal(t, *date(2025, 1, 1), *orig.EffectiveFrom)
}
