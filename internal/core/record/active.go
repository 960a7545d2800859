package record

import "time"

// ComputeActive は記録が now 時点で有効かどうかを判定します。
// 期間を持つ種別は期間内・未削除・未失効（承認が必要な種別は承認済み）の場合に有効、
// 期間を持たない種別は未削除であれば有効です。
func ComputeActive(rec *Record, now time.Time) bool {
	if rec == nil || rec.DeletedAt != nil {
		return false
	}

	spec, ok := rec.Kind.Spec()
	if !ok {
		return false
	}
	if !spec.Temporal {
		return true
	}

	if rec.DeactivatedAt != nil {
		return false
	}
	if spec.RequiresApproval && (rec.Approved == nil || !*rec.Approved) {
		return false
	}

	return withinPeriod(rec.EffectiveFrom, rec.EffectiveUntil, now)
}

// Refresh は導出値 Active を now 時点で再計算します。
func Refresh(now time.Time, records ...*Record) {
	for _, rec := range records {
		if rec != nil {
			rec.Active = ComputeActive(rec, now)
		}
	}
}

// Overlaps は 2 つの期間が 1 日以上重なるかを返します。終了日が nil の期間は無期限として扱います。
func Overlaps(aFrom, aUntil, bFrom, bUntil *time.Time) bool {
	if aFrom == nil || bFrom == nil || aFrom.IsZero() || bFrom.IsZero() {
		return false
	}
	if aUntil != nil && truncateDay(*aUntil).Before(truncateDay(*bFrom)) {
		return false
	}
	if bUntil != nil && truncateDay(*bUntil).Before(truncateDay(*aFrom)) {
		return false
	}
	return true
}

// DurationDays は期間の日数（両端を含む）を返します。終了日がない場合は ok が false です。
func DurationDays(from, until *time.Time) (int, bool) {
	if from == nil || until == nil || from.IsZero() || until.IsZero() {
		return 0, false
	}
	days := int(truncateDay(*until).Sub(truncateDay(*from)).Hours()/24) + 1
	if days < 1 {
		return 0, false
	}
	return days, true
}

func withinPeriod(from, until *time.Time, now time.Time) bool {
	if from == nil || from.IsZero() {
		return false
	}
	day := truncateDay(now)
	if day.Before(truncateDay(*from)) {
		return false
	}
	if until != nil && day.After(truncateDay(*until)) {
		return false
	}
	return true
}

// NormalizeDate は日付を UTC の 0 時に丸めます。
func NormalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := truncateDay(*t)
	return &normalized
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Deactivate は記録を失効させる状態遷移です。既に失効済みの場合は false を返し、何も変更しません。
func Deactivate(rec *Record, now time.Time) bool {
	if rec == nil || rec.DeactivatedAt != nil {
		return false
	}
	at := now
	rec.DeactivatedAt = &at
	rec.UpdatedAt = now
	rec.Active = false
	return true
}
