package protocol

import "testing"

func TestNewTextMessage(t *testing.T) {
	msg := NewTextMessage(RoleCaller, "hello")

	if msg.ID == "" {
		t.Error("message should get a generated ID")
	}
	if msg.Role != RoleCaller {
		t.Errorf("Role = %q, want %q", msg.Role, RoleCaller)
	}
	if len(msg.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(msg.Parts))
	}
	if msg.Parts[0].Kind != PartKindText || msg.Parts[0].Text != "hello" {
		t.Errorf("unexpected part: %+v", msg.Parts[0])
	}
}

func TestMessage_Text(t *testing.T) {
	msg := Message{Parts: []Part{
		{Kind: PartKindText, Text: "one "},
		{Kind: PartKindText, Text: "two"},
		{Kind: PartKind("binary"), Text: "ignored"},
	}}

	if got := msg.Text(); got != "one two" {
		t.Errorf("Text() = %q, want %q", got, "one two")
	}
}

func TestOK(t *testing.T) {
	resp := OK(map[string]any{"name": "Charlie Brown"})

	if resp.Status != StatusSuccess {
		t.Errorf("Status = %q, want success", resp.Status)
	}
	if resp.Error != nil {
		t.Error("success response should carry no error")
	}
	if resp.Result["name"] != "Charlie Brown" {
		t.Errorf("Result = %v", resp.Result)
	}
}

func TestFail(t *testing.T) {
	resp := Fail("not_found", "customer 999 not found")

	if resp.Status != StatusError {
		t.Errorf("Status = %q, want error", resp.Status)
	}
	if resp.Result != nil {
		t.Error("error response should carry no result")
	}
	if resp.Error == nil || resp.Error.Code != "not_found" {
		t.Errorf("Error = %+v", resp.Error)
	}
}
