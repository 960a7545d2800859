package record

import "time"

// Kind は人事記録の種別（リソース）を表します。
type Kind string

const (
	KindAbsence            Kind = "absence"
	KindSanction           Kind = "sanction"
	KindCommission         Kind = "commission"
	KindPositionAssignment Kind = "position_assignment"
	KindDestinationChange  Kind = "destination_change"
	KindPosition           Kind = "position"
	KindUnit               Kind = "unit"
)

// KindSpec は種別ごとの有効判定ルールです。
type KindSpec struct {
	Temporal         bool
	RequiresApproval bool
	RequiresSubject  bool
}

var kindSpecs = map[Kind]KindSpec{
	KindAbsence:            {Temporal: true, RequiresApproval: true, RequiresSubject: true},
	KindSanction:           {Temporal: true, RequiresSubject: true},
	KindCommission:         {Temporal: true, RequiresApproval: true, RequiresSubject: true},
	KindPositionAssignment: {Temporal: true, RequiresSubject: true},
	KindDestinationChange:  {Temporal: true, RequiresSubject: true},
	KindPosition:           {},
	KindUnit:               {},
}

// Kinds は登録済みの種別を定義順で返します。
func Kinds() []Kind {
	return []Kind{
		KindAbsence,
		KindSanction,
		KindCommission,
		KindPositionAssignment,
		KindDestinationChange,
		KindPosition,
		KindUnit,
	}
}

// Spec は種別のルールを返します。未知の種別では ok が false になります。
func (k Kind) Spec() (KindSpec, bool) {
	spec, ok := kindSpecs[k]
	return spec, ok
}

// Valid は既知の種別かどうかを返します。
func (k Kind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// Record は各リソースに共通する人事記録エンティティです。
type Record struct {
	ID             string
	Kind           Kind
	SubjectID      *string
	SubjectName    string
	Category       string
	Description    string
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	Approved       *bool
	DeactivatedAt  *time.Time
	DeletedAt      *time.Time
	// Active は ComputeActive による導出値で、永続化されません。
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deleted は論理削除済みかどうかを返します。
func (r *Record) Deleted() bool {
	return r != nil && r.DeletedAt != nil
}

// Clone は Record のディープコピーを返します。
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.SubjectID = cloneString(r.SubjectID)
	c.EffectiveFrom = cloneTime(r.EffectiveFrom)
	c.EffectiveUntil = cloneTime(r.EffectiveUntil)
	c.DeactivatedAt = cloneTime(r.DeactivatedAt)
	c.DeletedAt = cloneTime(r.DeletedAt)
	if r.Approved != nil {
		approved := *r.Approved
		c.Approved = &approved
	}
	return &c
}

// CloneAll はスライス全体を複製します。
func CloneAll(records []*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
