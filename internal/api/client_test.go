package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinicdesk/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts.BaseURL = server.URL + "/api"
	return NewClient(opts), server
}

func TestAuthenticatedRequestCarriesBearer(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.User{UserID: "u1"})
	}), Options{TokenSource: func() string { return "token-9" }})

	if _, err := client.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if gotAuth != "Bearer token-9" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestErrorBodyDecoded(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"patient not found","code":"patient_not_found"}`))
	}), Options{})

	_, err := client.GetPatient(context.Background(), "p1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "patient_not_found" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "patient not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestMalformedErrorBodyFallsBackToStatusText(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}), Options{})

	_, err := client.Me(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestUnauthorizedFiresHookOnce(t *testing.T) {
	fired := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}), Options{
		TokenSource:    func() string { return "stale" },
		OnUnauthorized: func() { fired++ },
	})

	if _, err := client.Me(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}
}

func TestUnauthorizedWithoutTokenDoesNotFireHook(t *testing.T) {
	fired := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	}), Options{OnUnauthorized: func() { fired++ }})

	if _, err := client.Login(context.Background(), "x@y", "bad"); err == nil {
		t.Fatal("expected error")
	}
	if fired != 0 {
		t.Fatal("hook fired for an unauthenticated request")
	}
}

func TestGetQueueRetriesTransientFailure(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"try again"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"v1","status":"waiting","urgency":"standard"}]`))
	}), Options{ReadRetries: 3})

	visits, err := client.GetQueue(context.Background())
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(visits) != 1 || visits[0].VisitID != "v1" {
		t.Fatalf("visits = %+v", visits)
	}
}

func TestGetQueueDoesNotRetryClientError(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"forbidden"}`))
	}), Options{ReadRetries: 3})

	if _, err := client.GetQueue(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestCancelVisitAcceptsNoContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/queue/v1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}), Options{})

	if err := client.CancelVisit(context.Background(), "v1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestListPatientsEncodesFilters(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"total":0,"page":2,"limit":5,"total_pages":0}`))
	}), Options{})

	_, err := client.ListPatients(context.Background(), models.PatientFilters{Search: "martin", Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotQuery != "limit=5&page=2&search=martin" {
		t.Fatalf("query = %q", gotQuery)
	}
}
