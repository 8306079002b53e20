package service

import (
	"strings"

	"github.com/myphonelist/backend/internal/model"
)

// Line prefixes recognised in shared contact text. Matching is exact and case-sensitive.
const (
	prefixName   = "[Name]"
	prefixMobile = "[Mobile]"
	prefixHome   = "[Home]"
)

// ExtractContactInfo parses shared text such as
//
//	[Name] Alice
//	[Mobile] 555-1234
//	[Home] alice@example.com
//
// Lines with other prefixes are ignored and a repeated prefix keeps its last
// value. ok is false unless both a [Name] and a [Mobile] line were present.
// [Home] carries the email address; Email and Tag default to "".
func ExtractContactInfo(text string) (info *model.ContactInfo, ok bool) {
	var (
		name, phone       string
		hasName, hasPhone bool
		email             string
	)

	for _, line := range splitLines(text) {
		switch {
		case strings.HasPrefix(line, prefixName):
			name = strings.TrimSpace(strings.TrimPrefix(line, prefixName))
			hasName = true
		case strings.HasPrefix(line, prefixMobile):
			phone = strings.TrimSpace(strings.TrimPrefix(line, prefixMobile))
			hasPhone = true
		case strings.HasPrefix(line, prefixHome):
			email = strings.TrimSpace(strings.TrimPrefix(line, prefixHome))
		}
	}

	if !hasName || !hasPhone {
		return nil, false
	}
	return &model.ContactInfo{Name: name, PhoneNumber: phone, Email: email}, true
}

// splitLines splits on \n, \r\n and lone \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
