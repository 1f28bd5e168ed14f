package vcard

import (
	"bytes"
	"strings"

	govcard "github.com/emersion/go-vcard"
	"github.com/google/uuid"
)

// Build emits a VERSION:3.0 vCard with a fresh UUIDv4 UID, the given FN,
// and an N derived by splitting FN on the last whitespace: family is the
// last word, given is everything before it (§4.5.6).
func Build(input ContactInput) ([]byte, error) {
	card := govcard.Card{}
	card.SetValue(govcard.FieldVersion, "3.0")
	card.SetValue(govcard.FieldUID, uuid.NewString())
	card.SetValue(govcard.FieldFormattedName, input.FormattedName)

	given, family := splitFormattedName(input.FormattedName)
	card.SetName(&govcard.Name{GivenName: given, FamilyName: family})

	for _, e := range input.Emails {
		card.Add(govcard.FieldEmail, &govcard.Field{Value: e})
	}
	for _, p := range input.Phones {
		card.Add(govcard.FieldTelephone, &govcard.Field{Value: p})
	}
	if input.Organization != "" {
		card.SetValue(govcard.FieldOrganization, input.Organization)
	}

	var buf bytes.Buffer
	if err := govcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitFormattedName(fn string) (given, family string) {
	fn = strings.TrimSpace(fn)
	idx := strings.LastIndexAny(fn, " \t")
	if idx < 0 {
		return "", fn
	}
	return strings.TrimSpace(fn[:idx]), strings.TrimSpace(fn[idx+1:])
}
