package service

import (
	"errors"
	"io"
	"unicode"

	"github.com/emersion/go-vcard"
	"github.com/myphonelist/backend/internal/model"
)

// vCardVersion is the version written on export.
const vCardVersion = "3.0"

var errNoVCardData = errors.New("input contains no vcard data")

// contactFromCard maps the formatted name, first telephone number and first
// email of card. Missing properties map to "". Tag is never set.
func contactFromCard(card vcard.Card) *model.Contact {
	return &model.Contact{
		Name:        card.Value(vcard.FieldFormattedName),
		PhoneNumber: card.Value(vcard.FieldTelephone),
		Email:       card.Value(vcard.FieldEmail),
	}
}

// cardFromContact builds a card with FN, one TEL and, when present, one EMAIL.
// Tag is not carried.
func cardFromContact(c *model.Contact) vcard.Card {
	card := vcard.Card{}
	card.SetValue(vcard.FieldVersion, vCardVersion)
	card.SetValue(vcard.FieldFormattedName, c.Name)
	card.AddValue(vcard.FieldTelephone, c.PhoneNumber)
	if c.Email != "" {
		card.AddValue(vcard.FieldEmail, c.Email)
	}
	return card
}

// blankTracker records whether anything other than whitespace passed through.
type blankTracker struct {
	r        io.Reader
	nonBlank bool
}

func (b *blankTracker) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if !b.nonBlank {
		for _, c := range p[:n] {
			if !unicode.IsSpace(rune(c)) {
				b.nonBlank = true
				break
			}
		}
	}
	return n, err
}
