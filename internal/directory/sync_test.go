// internal/directory/sync_test.go
package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchOrganizations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/svc/v1/organizations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Service-Token") != "shared-secret" {
			t.Errorf("missing service token header")
		}
		if r.URL.Query().Get("since") != "" {
			t.Errorf("full sync must not carry a since parameter, got %q", r.URL.Query().Get("since"))
		}
		_, _ = w.Write([]byte(`{"organizations": [
			{"id": "4f6e1a52-1db5-4f37-9a3a-111111111111", "name": "Acme", "storage_enabled": true,
			 "storage_prefix": "acme/files", "updated_at": "2026-03-01T10:00:00Z"},
			{"id": "4f6e1a52-1db5-4f37-9a3a-222222222222", "name": "Globex", "storage_enabled": false,
			 "updated_at": "2026-03-02T10:00:00Z"}
		]}`))
	}))
	defer server.Close()

	s := NewService(nil, server.URL, "shared-secret")
	orgs, err := s.fetchOrganizations(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("fetchOrganizations: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("orgs = %d, want 2", len(orgs))
	}
	if orgs[0].Name != "Acme" || !orgs[0].StorageEnabled {
		t.Errorf("first org mapped wrong: %+v", orgs[0])
	}
	if orgs[0].StoragePrefix == nil || *orgs[0].StoragePrefix != "acme/files" {
		t.Errorf("storage prefix lost: %+v", orgs[0].StoragePrefix)
	}
	if orgs[1].StoragePrefix != nil {
		t.Errorf("absent prefix should stay nil")
	}
}

func TestFetchUsers_IncrementalSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/svc/v1/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("since"); got != "2026-03-01T12:00:00Z" {
			t.Errorf("since = %q, want RFC3339 watermark", got)
		}
		_, _ = w.Write([]byte(`{"users": [
			{"id": "u-1", "username": "jordan", "email": "jordan@acme.test",
			 "organization_id": "4f6e1a52-1db5-4f37-9a3a-111111111111",
			 "roles": ["admin", "member"], "updated_at": "2026-03-01T13:00:00Z"}
		]}`))
	}))
	defer server.Close()

	s := NewService(nil, server.URL, "shared-secret")
	users, err := s.fetchUsers(context.Background(), since)
	if err != nil {
		t.Fatalf("fetchUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
	u := users[0]
	if u.Username != "jordan" || u.OrganizationID == nil || len(u.Roles) != 2 {
		t.Errorf("user mapped wrong: %+v", u)
	}
}

func TestFetch_PortalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid service token"}`))
	}))
	defer server.Close()

	s := NewService(nil, server.URL, "wrong-secret")
	if _, err := s.fetchUsers(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected error for non-200 portal response")
	}
}
