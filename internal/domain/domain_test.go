package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStatus_Valid(t *testing.T) {
	cases := []struct {
		in   Status
		want bool
	}{
		{StatusEnabled, true},
		{StatusDisabled, true},
		{StatusError, true},
		{"", false},
		{"2", false},
	}
	for _, c := range cases {
		if got := c.in.Valid(); got != c.want {
			t.Fatalf("Status(%q).Valid()=%v want %v", c.in, got, c.want)
		}
	}
}

func TestHSTSRecord_NullHeaderEncodesAsNull(t *testing.T) {
	b, err := json.Marshal(HSTSRecord{URL: "https://example.com", Status: StatusDisabled})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"header":null`) {
		t.Fatalf("want null header, got %s", b)
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("") != nil {
		t.Fatalf("empty string should map to nil")
	}
	if p := StringPtr("x"); p == nil || *p != "x" {
		t.Fatalf("unexpected pointer: %v", p)
	}
}
