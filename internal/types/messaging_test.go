package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSendInputOmitsEmptyOptionalFields(t *testing.T) {
	in := SendInput{
		To:       "farmer@example.com",
		From:     SenderIdentity{Address: "alerts@plotwatch.local", Name: "Plotwatch Alerts"},
		Subject:  "Alert for North Field",
		BodyText: "water now",
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	for _, key := range []string{"to_name", "body_html", "reference_id"} {
		if strings.Contains(s, key) {
			t.Errorf("marshalled SendInput should omit empty %q: %s", key, s)
		}
	}
	if !strings.Contains(s, `"address":"alerts@plotwatch.local"`) {
		t.Errorf("sender address missing: %s", s)
	}
}

func TestSMSInputJSONKeys(t *testing.T) {
	data, err := json.Marshal(SMSInput{To: "+919876543210", Body: "hi", ReferenceID: "r-1"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"to":"+919876543210","body":"hi","reference_id":"r-1"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
