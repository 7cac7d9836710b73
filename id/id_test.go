package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stitchhq/stitch/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ApplicationID", id.NewApplicationID, "app_"},
		{"ResumeID", id.NewResumeID, "res_"},
		{"TailoredID", id.NewTailoredID, "tlr_"},
		{"QueueItemID", id.NewQueueItemID, "qi_"},
		{"DLQID", id.NewDLQID, "dlq_"},
		{"EventID", id.NewEventID, "evt_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"UserID", id.NewUserID, "usr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ApplicationID", id.NewApplicationID, id.ParseApplicationID},
		{"ResumeID", id.NewResumeID, id.ParseResumeID},
		{"TailoredID", id.NewTailoredID, id.ParseTailoredID},
		{"QueueItemID", id.NewQueueItemID, id.ParseQueueItemID},
		{"DLQID", id.NewDLQID, id.ParseDLQID},
		{"EventID", id.NewEventID, id.ParseEventID},
		{"WorkerID", id.NewWorkerID, id.ParseWorkerID},
		{"UserID", id.NewUserID, id.ParseUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseApplicationID rejects res_", id.NewResumeID().String(), id.ParseApplicationID},
		{"ParseResumeID rejects tlr_", id.NewTailoredID().String(), id.ParseResumeID},
		{"ParseTailoredID rejects qi_", id.NewQueueItemID().String(), id.ParseTailoredID},
		{"ParseQueueItemID rejects dlq_", id.NewDLQID().String(), id.ParseQueueItemID},
		{"ParseDLQID rejects evt_", id.NewEventID().String(), id.ParseDLQID},
		{"ParseEventID rejects wkr_", id.NewWorkerID().String(), id.ParseEventID},
		{"ParseWorkerID rejects usr_", id.NewUserID().String(), id.ParseWorkerID},
		{"ParseUserID rejects app_", id.NewApplicationID().String(), id.ParseUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []string{"", "not-an-id", "app_!!!!", "_missingprefix"}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := id.Parse(input); err == nil {
				t.Errorf("expected error for %q, got nil", input)
			}
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := id.NewApplicationID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed id.ID
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Fatal("Nil.IsNil() = false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String() = %q, want empty", id.Nil.String())
	}

	v, err := id.Nil.Value()
	if err != nil {
		t.Fatalf("Nil.Value(): %v", err)
	}
	if v != nil {
		t.Errorf("Nil.Value() = %v, want nil", v)
	}
}

func TestScan(t *testing.T) {
	original := id.NewTailoredID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("scan string mismatch: %q != %q", fromString.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("scan nil should produce Nil ID")
	}

	var fromInt id.ID
	if err := fromInt.Scan(42); err == nil {
		t.Error("expected error scanning int, got nil")
	}
}
