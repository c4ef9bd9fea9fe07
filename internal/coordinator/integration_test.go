package coordinator_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinicdesk/internal/api"
	"clinicdesk/internal/coordinator"
	"clinicdesk/internal/mockbackend"
	"clinicdesk/internal/models"
	"clinicdesk/internal/queue"
	"clinicdesk/internal/realtime"
	"clinicdesk/internal/session"
)

// TestFrontdeskFlow drives the full client stack against the mock backend:
// login, realtime subscription, optimistic actions, convergence.
func TestFrontdeskFlow(t *testing.T) {
	server := httptest.NewServer(mockbackend.NewServer().Routes())
	defer server.Close()
	ctx := context.Background()

	sess := session.New()
	client := api.NewClient(api.Options{
		BaseURL:     server.URL + "/api",
		TokenSource: sess.Token,
	})

	login, err := client.Login(ctx, "provider@clinic.test", "provider123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	sess.Establish(login.User, login.Token)
	if !sess.HasPermission(models.PermVisitsCall) {
		t.Fatal("provider cannot call patients")
	}

	store := queue.NewStore()
	events := realtime.NewClient(realtime.Options{
		URL:         "ws" + strings.TrimPrefix(server.URL, "http") + "/realtime",
		BackoffBase: 10 * time.Millisecond,
	})
	defer events.Close()

	coord := coordinator.New(store, client, events, coordinator.Options{RevalidateDebounce: 10 * time.Millisecond})
	unbind := coord.BindRealtime(events)
	defer unbind()

	if err := events.Connect(sess.Token()); err != nil {
		t.Fatalf("realtime connect: %v", err)
	}
	if err := events.JoinRoom(realtime.RoomQueue); err != nil {
		t.Fatalf("join room: %v", err)
	}
	if err := coord.Revalidate(ctx); err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if store.Len() == 0 {
		t.Fatal("empty store after revalidate")
	}
	if store.Connection() != models.ConnConnected {
		t.Fatalf("connection = %s, want connected", store.Connection())
	}

	target := store.Entries()[0].VisitID
	if _, err := coord.CallPatient(ctx, target); err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, err := coord.StartConsultation(ctx, target); err != nil {
		t.Fatalf("start: %v", err)
	}

	serving, err := store.NowServing()
	if err != nil {
		t.Fatalf("now serving: %v", err)
	}
	if serving == nil || serving.VisitID != target {
		t.Fatalf("now serving = %+v, want %s", serving, target)
	}

	if _, err := coord.FinishConsultation(ctx, target, "done"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	serving, err = store.NowServing()
	if err != nil {
		t.Fatalf("now serving: %v", err)
	}
	if serving != nil {
		t.Fatalf("now serving = %+v after finish", serving)
	}

	// The debounced revalidation converges the local view on the server.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get(target); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := store.Get(target); ok {
		t.Fatal("finished visit never left the local queue")
	}
}
