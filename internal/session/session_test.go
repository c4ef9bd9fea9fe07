package session

import (
	"testing"

	"clinicdesk/internal/models"
)

func TestEstablishAndClear(t *testing.T) {
	s := New()
	if s.IsAuthenticated() {
		t.Fatal("fresh session reports authenticated")
	}

	s.Establish(models.User{UserID: "u1", Email: "clerk@clinic.test", Role: models.RoleClerk}, "token-1")
	if !s.IsAuthenticated() {
		t.Fatal("authenticated session reports anonymous")
	}
	if got := s.Token(); got != "token-1" {
		t.Fatalf("token = %q", got)
	}
	user, ok := s.Current()
	if !ok || user.UserID != "u1" {
		t.Fatalf("current = %+v, ok=%v", user, ok)
	}

	s.Clear()
	if s.IsAuthenticated() || s.Token() != "" {
		t.Fatal("clear did not reset session")
	}
	if _, ok := s.Current(); ok {
		t.Fatal("current after clear")
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role       string
		permission string
		want       bool
	}{
		{models.RoleAdmin, models.PermUsersCreate, true},
		{models.RoleAdmin, models.PermVisitsCall, true},
		{models.RoleProvider, models.PermVisitsCall, true},
		{models.RoleProvider, models.PermUsersCreate, false},
		{models.RoleClerk, models.PermPatientsCreate, true},
		{models.RoleClerk, models.PermVisitsCall, false},
	}

	for _, tc := range cases {
		s := New()
		s.Establish(models.User{UserID: "u", Role: tc.role}, "t")
		if got := s.HasPermission(tc.permission); got != tc.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.permission, got, tc.want)
		}
	}
}

func TestHasPermissionAnonymous(t *testing.T) {
	s := New()
	if s.HasPermission(models.PermVisitsRead) {
		t.Fatal("anonymous session granted permission")
	}
	if s.HasRole(models.RoleAdmin) {
		t.Fatal("anonymous session granted role")
	}
}
