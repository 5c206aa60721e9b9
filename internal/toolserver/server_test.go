package toolserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/quorumhq/quorum/internal/toolstore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := toolstore.Open(filepath.Join(t.TempDir(), "tools.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := store.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	srv := httptest.NewServer(NewServer(toolstore.NewCaller(store)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCallRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)

	payload, err := client.Call(context.Background(), "get_record", map[string]any{"record_id": 5})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	rec, ok := payload["record"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	if rec["name"] != "Charlie Brown" {
		t.Errorf("name = %v, want Charlie Brown", rec["name"])
	}
}

func TestClientTranslatesNotFound(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)

	_, err := client.Call(context.Background(), "get_record", map[string]any{"record_id": 9999})
	if !errors.Is(err, toolstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound through the wire", err)
	}
}

func TestClientTranslatesValidation(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)

	_, err := client.Call(context.Background(), "get_record", map[string]any{})
	var valErr *toolstore.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError through the wire", err)
	}
	if valErr.Field != "record_id" {
		t.Errorf("field = %s, want record_id", valErr.Field)
	}
}

func TestClientUnknownTool(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)

	_, err := client.Call(context.Background(), "drop_tables", nil)
	var valErr *toolstore.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestClientListTools(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 6 {
		t.Fatalf("got %d tools, want 6", len(tools))
	}
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, want := range []string{"get_record", "list_records", "update_record", "create_entry", "get_related", "records_by_attr"} {
		if !names[want] {
			t.Errorf("tool list misses %s", want)
		}
	}
}

func TestClientHealth(t *testing.T) {
	srv := newTestServer(t)
	client := NewClient(srv.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}
