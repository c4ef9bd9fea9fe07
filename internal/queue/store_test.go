package queue

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"clinicdesk/internal/models"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewStore()
	s.ReplaceAll([]models.Visit{
		visitAt("v1", models.UrgencyCritical, base),
		visitAt("v2", models.UrgencyStandard, base.Add(5*time.Minute)),
		visitAt("v3", models.UrgencyPriority, base.Add(10*time.Minute)),
	})
	return s
}

func TestReplaceAllOrdersEntries(t *testing.T) {
	s := seededStore(t)
	got := ids(s.Entries())
	want := []string{"v1", "v3", "v2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
}

func TestPatchAbsentIsNoOp(t *testing.T) {
	s := seededStore(t)
	status := models.StatusCalled
	if s.Patch("missing", VisitPatch{Status: &status}) {
		t.Fatal("patch of absent id reported an update")
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
}

func TestPatchReorders(t *testing.T) {
	s := seededStore(t)
	status := models.StatusCalled
	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	if !s.Patch("v2", VisitPatch{Status: &status, CalledAt: &at}) {
		t.Fatal("patch did not apply")
	}
	visit, ok := s.Get("v2")
	if !ok {
		t.Fatal("v2 missing after patch")
	}
	if visit.Status != models.StatusCalled {
		t.Fatalf("status = %s, want called", visit.Status)
	}
	if visit.CalledAt == nil || !visit.CalledAt.Equal(at) {
		t.Fatalf("calledAt = %v, want %v", visit.CalledAt, at)
	}
	// Urgency is untouched, so position holds.
	if pos := s.Position("v2"); pos != 3 {
		t.Fatalf("position = %d, want 3", pos)
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	s := seededStore(t)
	err := s.Insert(visitAt("v1", models.UrgencyStandard, time.Now()))
	if !errors.Is(err, ErrDuplicateVisit) {
		t.Fatalf("err = %v, want ErrDuplicateVisit", err)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
}

func TestNowServingDerived(t *testing.T) {
	s := seededStore(t)

	serving, err := s.NowServing()
	if err != nil {
		t.Fatalf("now serving: %v", err)
	}
	if serving != nil {
		t.Fatalf("serving = %v, want nil", serving)
	}

	status := models.StatusInConsultation
	s.Patch("v3", VisitPatch{Status: &status})
	serving, err = s.NowServing()
	if err != nil {
		t.Fatalf("now serving: %v", err)
	}
	if serving == nil || serving.VisitID != "v3" {
		t.Fatalf("serving = %v, want v3", serving)
	}

	s.Patch("v1", VisitPatch{Status: &status})
	if _, err := s.NowServing(); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := seededStore(t)
	at := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)
	status := models.StatusCalled
	s.Patch("v1", VisitPatch{Status: &status, CalledAt: &at})

	snapshot := s.Snapshot()
	before := s.Entries()

	inConsult := models.StatusInConsultation
	s.Patch("v1", VisitPatch{Status: &inConsult})
	s.Remove("v2")
	s.Restore(snapshot)

	after := s.Entries()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("restore mismatch:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestSnapshotIsolatedFromLaterPatches(t *testing.T) {
	s := seededStore(t)
	at := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)
	status := models.StatusCalled
	s.Patch("v1", VisitPatch{Status: &status, CalledAt: &at})

	snapshot := s.Snapshot()
	later := at.Add(time.Hour)
	s.Patch("v1", VisitPatch{CalledAt: &later})

	for _, visit := range snapshot {
		if visit.VisitID == "v1" && !visit.CalledAt.Equal(at) {
			t.Fatalf("snapshot aliased live state: calledAt = %v", visit.CalledAt)
		}
	}
}

func TestRemoveAndPosition(t *testing.T) {
	s := seededStore(t)
	if !s.Remove("v1") {
		t.Fatal("remove v1 failed")
	}
	if s.Remove("v1") {
		t.Fatal("second remove reported success")
	}
	if pos := s.Position("v1"); pos != -1 {
		t.Fatalf("position = %d, want -1", pos)
	}
	if pos := s.Position("v3"); pos != 1 {
		t.Fatalf("position = %d, want 1", pos)
	}
}

func TestCountByStatus(t *testing.T) {
	s := seededStore(t)
	status := models.StatusCalled
	s.Patch("v1", VisitPatch{Status: &status})
	if got := s.CountByStatus(models.StatusWaiting); got != 2 {
		t.Fatalf("waiting = %d, want 2", got)
	}
	if got := s.CountByStatus(models.StatusCalled); got != 1 {
		t.Fatalf("called = %d, want 1", got)
	}
}

func TestConnectionState(t *testing.T) {
	s := NewStore()
	if got := s.Connection(); got != models.ConnDisconnected {
		t.Fatalf("initial connection = %s, want disconnected", got)
	}
	s.SetConnection(models.ConnConnected)
	if got := s.Connection(); got != models.ConnConnected {
		t.Fatalf("connection = %s, want connected", got)
	}
}
