package vcard

import (
	"bytes"
	"strings"

	govcard "github.com/emersion/go-vcard"
)

// Update parses raw, applies only the fields set in changes, and
// re-serializes. PHOTO, grouped properties, X-* properties, and the
// original VERSION are never touched because they live in the same Card
// map that gets re-encoded untouched.
func Update(raw []byte, changes ContactChanges) ([]byte, error) {
	card, err := decodeFirst(raw)
	if err != nil {
		return nil, err
	}

	if changes.FormattedName != nil {
		card.SetValue(govcard.FieldFormattedName, *changes.FormattedName)
		given, family := splitFormattedName(*changes.FormattedName)
		card.SetName(&govcard.Name{GivenName: given, FamilyName: family})
	}
	if changes.Organization != nil {
		card.SetValue(govcard.FieldOrganization, *changes.Organization)
	}
	if changes.Emails != nil {
		replaceValues(card, govcard.FieldEmail, changes.Emails)
	}
	if changes.Phones != nil {
		replaceValues(card, govcard.FieldTelephone, changes.Phones)
	}

	var buf bytes.Buffer
	if err := govcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// replaceValues wholesale-replaces a repeatable field, discarding any
// group/param association the previous values carried. This only runs
// when the caller explicitly supplied a new list for that field.
func replaceValues(card govcard.Card, key string, values []string) {
	delete(card, key)
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		card.Add(key, &govcard.Field{Value: v})
	}
}
