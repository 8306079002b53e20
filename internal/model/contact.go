package model

import "strings"

// Contact is a single entry in the phone list.
type Contact struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Tag         string `json:"tag"`
}

// ContactInfo is the transient result of parsing shared text. It is never persisted.
type ContactInfo struct {
	Name        string
	PhoneNumber string
	Email       string
	Tag         string
}

// Matches reports whether query is a substring of the contact's name, email or tag
// (case-insensitive) or of its phone number (case-sensitive). An empty query matches.
func (c *Contact) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(c.PhoneNumber, query) ||
		strings.Contains(strings.ToLower(c.Email), q) ||
		strings.Contains(strings.ToLower(c.Tag), q)
}

// FilterContacts returns the contacts matching query, preserving order.
// The result is never nil.
func FilterContacts(contacts []*Contact, query string) []*Contact {
	out := make([]*Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.Matches(query) {
			out = append(out, c)
		}
	}
	return out
}
