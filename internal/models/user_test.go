package models

import (
	"encoding/json"
	"testing"
)

func TestAuthenticated(t *testing.T) {
	cases := []struct {
		name   string
		record *UserRecord
		want   bool
	}{
		{"nil record", nil, false},
		{"nothing set", &UserRecord{PhoneNumber: "9812345678"}, false},
		{"phone verified only", &UserRecord{PhoneNumber: "9812345678", PhoneVerified: true}, false},
		{"fi linked only", &UserRecord{PhoneNumber: "9812345678", IsFIconnect: true}, false},
		{"both flags", &UserRecord{PhoneNumber: "9812345678", PhoneVerified: true, IsFIconnect: true}, true},
	}

	for _, tc := range cases {
		if got := tc.record.Authenticated(); got != tc.want {
			t.Errorf("%s: Authenticated() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOpaqueFieldsSurviveRoundTrip(t *testing.T) {
	payload := `{"phoneNumber":"9812345678","name":"Asha","phoneVerified":true,"isFIconnect":false,"monthlyBudget":42000,"avatar":"a1"}`

	var record UserRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record.PhoneNumber != "9812345678" || record.Name != "Asha" || !record.PhoneVerified {
		t.Fatalf("known fields not decoded: %+v", record)
	}
	if len(record.Extra) != 2 {
		t.Fatalf("expected 2 opaque fields, got %d", len(record.Extra))
	}

	out, err := json.Marshal(&record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if decoded["monthlyBudget"] != float64(42000) {
		t.Errorf("opaque field monthlyBudget dropped: %v", decoded)
	}
	if decoded["avatar"] != "a1" {
		t.Errorf("opaque field avatar dropped: %v", decoded)
	}
	if decoded["phoneNumber"] != "9812345678" {
		t.Errorf("known field lost in round-trip: %v", decoded)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &UserRecord{
		PhoneNumber: "9812345678",
		Extra:       map[string]json.RawMessage{"avatar": json.RawMessage(`"a1"`)},
	}

	clone := original.Clone()
	clone.PhoneNumber = "9900000000"
	clone.Extra["avatar"] = json.RawMessage(`"a2"`)

	if original.PhoneNumber != "9812345678" {
		t.Errorf("clone mutated original phone number")
	}
	if string(original.Extra["avatar"]) != `"a1"` {
		t.Errorf("clone shares Extra map with original")
	}
}
