package model

import "testing"

func TestContact_Matches(t *testing.T) {
	c := &Contact{Name: "Alice Smith", PhoneNumber: "555-ABC", Email: "Alice@Example.com", Tag: "Work"}

	tests := []struct {
		query string
		want  bool
	}{
		{"", true},
		{"alice", true},
		{"SMITH", true},
		{"example.COM", true},
		{"work", true},
		{"555", true},
		{"ABC", true},
		{"abc", false}, // phone is case-sensitive
		{"bob", false},
	}
	for _, tt := range tests {
		if got := c.Matches(tt.query); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestFilterContacts_PreservesOrderAndNeverNil(t *testing.T) {
	contacts := []*Contact{
		{ID: 1, Name: "Alice", Tag: "family"},
		{ID: 2, Name: "Bob", Tag: "work"},
		{ID: 3, Name: "Carol", Tag: "Family"},
	}

	got := FilterContacts(contacts, "family")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("unexpected filter result: %+v", got)
	}

	none := FilterContacts(contacts, "zzz")
	if none == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}
