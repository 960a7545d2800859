package record

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	records map[string]*Record
	order   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*Record)}
}

func (r *fakeRepo) Create(_ context.Context, rec *Record) (*Record, error) {
	clone := rec.Clone()
	clone.ID = uuid.NewString()
	r.records[clone.ID] = clone
	r.order = append(r.order, clone.ID)
	return clone.Clone(), nil
}

func (r *fakeRepo) Update(_ context.Context, rec *Record) (*Record, error) {
	if _, ok := r.records[rec.ID]; !ok {
		return nil, ErrNotFound
	}
	r.records[rec.ID] = rec.Clone()
	return rec.Clone(), nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeRepo) List(_ context.Context, filter ListRecordsFilter) ([]*Record, error) {
	var out []*Record
	for _, id := range r.order {
		rec := r.records[id]
		if rec.Kind != filter.Kind {
			continue
		}
		if !filter.WithDeleted && rec.Deleted() {
			continue
		}
		if filter.SubjectID != nil && (rec.SubjectID == nil || *rec.SubjectID != *filter.SubjectID) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

type recordingEffect struct {
	source, target Kind
	calls          int
	ids            []string
	err            error
}

func (e *recordingEffect) Source() Kind { return e.source }
func (e *recordingEffect) Target() Kind { return e.target }
func (e *recordingEffect) Apply(_ context.Context, _ *Record) ([]string, error) {
	e.calls++
	return e.ids, e.err
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func boolPtr(v bool) *bool { return &v }

func subject() *string {
	id := uuid.NewString()
	return &id
}

func TestService_CreateRecord_Success(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)}
	svc := NewService(newFakeRepo(), clk, nil)

	from := time.Date(2025, 1, 10, 17, 0, 0, 0, time.UTC)
	result, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:           KindAbsence,
		SubjectID:      subject(),
		Category:       "  sick_leave ",
		Description:    " flu ",
		EffectiveFrom:  &from,
		EffectiveUntil: date(2025, 1, 20),
		Approved:       boolPtr(true),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	created := result.Record
	if created.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if created.DeletedAt != nil {
		t.Fatalf("expected deleted_at nil, got %v", created.DeletedAt)
	}
	if created.Category != "sick_leave" || created.Description != "flu" {
		t.Fatalf("expected trimmed fields, got %q / %q", created.Category, created.Description)
	}
	if !created.EffectiveFrom.Equal(*date(2025, 1, 10)) {
		t.Fatalf("expected effective_from normalized to date, got %v", created.EffectiveFrom)
	}
	if !created.Active {
		t.Fatal("expected approved absence within period to be active")
	}
	if !created.CreatedAt.Equal(clk.now) {
		t.Fatalf("expected created_at from clock, got %v", created.CreatedAt)
	}
}

func TestService_CreateRecord_ValidationErrors(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	_, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:           KindSanction,
		EffectiveFrom:  date(2025, 2, 1),
		EffectiveUntil: date(2025, 1, 1),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput in chain, got %v", err)
	}
	for _, field := range []string{"subject_id", "effective_until"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected field error for %s, got %+v", field, verr.Fields)
		}
	}
}

func TestService_CreateRecord_UnknownKind(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	_, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: "holiday"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["kind"]; !ok {
		t.Fatalf("expected kind field error, got %+v", verr.Fields)
	}
}

func TestService_CreateRecord_RunsMatchingEffects(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	sanctionEffect := &recordingEffect{source: KindSanction, target: KindAbsence, ids: []string{"a-1"}}
	unitEffect := &recordingEffect{source: KindUnit, target: KindPosition}
	svc := NewService(newFakeRepo(), clk, nil, sanctionEffect, unitEffect)

	result, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:           KindSanction,
		SubjectID:      subject(),
		EffectiveFrom:  date(2025, 1, 1),
		EffectiveUntil: date(2025, 1, 31),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	if sanctionEffect.calls != 1 {
		t.Fatalf("expected sanction effect to run once, got %d", sanctionEffect.calls)
	}
	if unitEffect.calls != 0 {
		t.Fatalf("expected unrelated effect to be skipped, got %d", unitEffect.calls)
	}
	if got := result.Affected(); !reflect.DeepEqual(got, []string{"a-1"}) {
		t.Fatalf("unexpected affected ids: %v", got)
	}
}

func TestService_CreateRecord_FutureSanctionRunsEffects(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	effect := &recordingEffect{source: KindSanction, target: KindAbsence, ids: []string{"a-1"}}
	svc := NewService(newFakeRepo(), clk, nil, effect)

	result, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindSanction,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	if result.Record.Active {
		t.Fatalf("expected future sanction to be inactive")
	}
	if effect.calls != 1 {
		t.Fatalf("expected future sanction to cascade once, got %d calls", effect.calls)
	}
	if got := result.Affected(); !reflect.DeepEqual(got, []string{"a-1"}) {
		t.Fatalf("unexpected affected ids: %v", got)
	}
}

func TestService_CreateRecord_EffectErrorFails(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	boom := errors.New("boom")
	svc := NewService(newFakeRepo(), clk, nil, &recordingEffect{source: KindSanction, target: KindAbsence, err: boom})

	_, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindSanction,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 1, 1),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected effect error, got %v", err)
	}
}

func TestService_DeleteRestore_RoundTrip(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	svc := NewService(newFakeRepo(), clk, nil)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindAbsence,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 1, 1),
		Approved:      boolPtr(true),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}
	original := created.Record

	clk.now = clk.now.Add(time.Hour)
	deleted, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: original.ID})
	if err != nil {
		t.Fatalf("DeleteRecord returned error: %v", err)
	}
	if deleted.DeletedAt == nil || !deleted.DeletedAt.Equal(clk.now) {
		t.Fatalf("expected deleted_at set to clock, got %v", deleted.DeletedAt)
	}
	if deleted.Active {
		t.Fatal("expected deleted record to be inactive")
	}

	restored, err := svc.RestoreRecord(context.Background(), RestoreRecordInput{ID: original.ID})
	if err != nil {
		t.Fatalf("RestoreRecord returned error: %v", err)
	}

	if !reflect.DeepEqual(restored.Record, original) {
		t.Fatalf("expected restored record to equal original\nwant %+v\ngot  %+v", original, restored.Record)
	}
}

func TestService_DeleteRecord_Errors(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: ""}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: "not-a-uuid"}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID for malformed id, got %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: uuid.NewString()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: KindUnit, Description: "HR"})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: created.Record.ID}); err != nil {
		t.Fatalf("first DeleteRecord returned error: %v", err)
	}
	_, err = svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: created.Record.ID})
	if !errors.Is(err, ErrAlreadyDeleted) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrAlreadyDeleted conflict, got %v", err)
	}
}

func TestService_RestoreRecord_NotDeleted(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: KindPosition, Description: "Analyst"})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	_, err = svc.RestoreRecord(context.Background(), RestoreRecordInput{ID: created.Record.ID})
	if !errors.Is(err, ErrNotDeleted) {
		t.Fatalf("expected ErrNotDeleted, got %v", err)
	}
	if _, err := svc.RestoreRecord(context.Background(), RestoreRecordInput{ID: uuid.NewString()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_RestoreRecord_RunsEffectsWhenActive(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	effect := &recordingEffect{source: KindSanction, target: KindAbsence}
	svc := NewService(newFakeRepo(), clk, nil, effect)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindSanction,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: created.Record.ID}); err != nil {
		t.Fatalf("DeleteRecord returned error: %v", err)
	}
	if _, err := svc.RestoreRecord(context.Background(), RestoreRecordInput{ID: created.Record.ID}); err != nil {
		t.Fatalf("RestoreRecord returned error: %v", err)
	}

	if effect.calls != 2 {
		t.Fatalf("expected effect on create and restore, got %d", effect.calls)
	}
}

func TestService_UpdateRecord_ActivationTriggersEffects(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	effect := &recordingEffect{source: KindSanction, target: KindAbsence}
	svc := NewService(newFakeRepo(), clk, nil, effect)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindSanction,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 3, 1),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}
	if created.Record.Active || effect.calls != 1 {
		t.Fatalf("expected future sanction inactive with one cascade on create, got %d", effect.calls)
	}

	desc := "updated"
	if _, err := svc.UpdateRecord(context.Background(), UpdateRecordInput{ID: created.Record.ID, Description: &desc}); err != nil {
		t.Fatalf("UpdateRecord returned error: %v", err)
	}
	if effect.calls != 1 {
		t.Fatalf("expected no cascade while still inactive, got %d", effect.calls)
	}

	updated, err := svc.UpdateRecord(context.Background(), UpdateRecordInput{
		ID:               created.Record.ID,
		EffectiveFrom:    date(2025, 1, 1),
		EffectiveFromSet: true,
	})
	if err != nil {
		t.Fatalf("UpdateRecord returned error: %v", err)
	}
	if !updated.Record.Active {
		t.Fatal("expected sanction to become active")
	}
	if effect.calls != 2 {
		t.Fatalf("expected cascade on activation, got %d", effect.calls)
	}
	if updated.Record.Description != "updated" {
		t.Fatalf("expected description preserved, got %q", updated.Record.Description)
	}
}

func TestService_UpdateRecord_DeletedConflict(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: KindUnit, Description: "Legal"})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), DeleteRecordInput{ID: created.Record.ID}); err != nil {
		t.Fatalf("DeleteRecord returned error: %v", err)
	}

	desc := "x"
	_, err = svc.UpdateRecord(context.Background(), UpdateRecordInput{ID: created.Record.ID, Description: &desc})
	if !errors.Is(err, ErrRecordDeleted) {
		t.Fatalf("expected ErrRecordDeleted, got %v", err)
	}
}

func TestService_DeactivateRecord_Idempotent(t *testing.T) {
	t.Parallel()

	clk := &stubClock{now: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	svc := NewService(newFakeRepo(), clk, nil)

	created, err := svc.CreateRecord(context.Background(), CreateRecordInput{
		Kind:          KindAbsence,
		SubjectID:     subject(),
		EffectiveFrom: date(2025, 1, 10),
		Approved:      boolPtr(true),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	first, err := svc.DeactivateRecord(context.Background(), DeactivateRecordInput{ID: created.Record.ID})
	if err != nil {
		t.Fatalf("DeactivateRecord returned error: %v", err)
	}
	if first.Active || first.DeactivatedAt == nil {
		t.Fatalf("expected deactivated record, got %+v", first)
	}
	if first.DeletedAt != nil {
		t.Fatal("deactivation must not soft-delete")
	}

	clk.now = clk.now.Add(time.Hour)
	second, err := svc.DeactivateRecord(context.Background(), DeactivateRecordInput{ID: created.Record.ID})
	if err != nil {
		t.Fatalf("second DeactivateRecord returned error: %v", err)
	}
	if !second.DeactivatedAt.Equal(*first.DeactivatedAt) {
		t.Fatalf("expected deactivated_at unchanged, got %v", second.DeactivatedAt)
	}
}

func TestService_ListRecords(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), &stubClock{now: time.Now()}, nil)

	for _, desc := range []string{"A", "B"} {
		if _, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: KindUnit, Description: desc}); err != nil {
			t.Fatalf("CreateRecord returned error: %v", err)
		}
	}
	if _, err := svc.CreateRecord(context.Background(), CreateRecordInput{Kind: KindPosition, Description: "P"}); err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	units, err := svc.ListRecords(context.Background(), ListRecordsInput{Kind: KindUnit})
	if err != nil {
		t.Fatalf("ListRecords returned error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if !u.Active {
			t.Fatalf("expected non-deleted unit active, got %+v", u)
		}
	}

	if _, err := svc.ListRecords(context.Background(), ListRecordsInput{Kind: "bogus"}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}
