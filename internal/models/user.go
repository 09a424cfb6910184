package models

import "encoding/json"

// UserRecord is the authoritative session entity returned by the finance
// backend. The backend owns most profile attributes; anything this service
// does not understand is kept verbatim in Extra and re-emitted on marshal so
// a round-trip through the local cache never drops server-owned fields.
type UserRecord struct {
	PhoneNumber   string `json:"phoneNumber"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	PhoneVerified bool   `json:"phoneVerified"`
	IsFIconnect   bool   `json:"isFIconnect"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the attributes this service interprets; everything else in
// a backend payload is opaque pass-through.
var knownFields = map[string]bool{
	"phoneNumber":   true,
	"name":          true,
	"email":         true,
	"phoneVerified": true,
	"isFIconnect":   true,
}

// Authenticated reports whether the record satisfies the full session
// invariant: present, phone verified and financial account linked. A user who
// has verified their phone but not completed FI linking is not authenticated
// for routing purposes.
func (u *UserRecord) Authenticated() bool {
	return u != nil && u.PhoneVerified && u.IsFIconnect
}

// Clone returns a deep copy of the record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

func (u *UserRecord) UnmarshalJSON(data []byte) error {
	type alias UserRecord
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownFields[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		known.Extra = raw
	}

	*u = UserRecord(known)
	return nil
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(u.Extra)+5)
	for k, v := range u.Extra {
		out[k] = v
	}

	type alias UserRecord
	base, err := json.Marshal(alias(u))
	if err != nil {
		return nil, err
	}
	var baseFields map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseFields); err != nil {
		return nil, err
	}
	// Known fields win over stale duplicates in Extra.
	for k, v := range baseFields {
		out[k] = v
	}

	return json.Marshal(out)
}
