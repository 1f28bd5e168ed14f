package vcard

import (
	"strings"

	govcard "github.com/emersion/go-vcard"
	"github.com/rs/zerolog"
)

// Transform parses raw and extracts FN, N, UID, all EMAILs, all TELs, and
// ORG into a Contact record. A missing FN yields (nil, false); RFC 6350
// requires it and a contact without one is not usable by the caller.
func Transform(raw []byte, log zerolog.Logger) (*Contact, bool) {
	card, err := decodeFirst(raw)
	if err != nil {
		log.Debug().Err(err).Msg("vcard: failed to decode card")
		return nil, false
	}

	fn := card.Value(govcard.FieldFormattedName)
	if fn == "" {
		log.Debug().Msg("vcard: card missing FN")
		return nil, false
	}

	c := &Contact{
		UID:           card.Value(govcard.FieldUID),
		FormattedName: fn,
		Organization:  card.Value(govcard.FieldOrganization),
		Raw:           raw,
	}

	if n := card.Name(); n != nil {
		c.Name = Name{Given: n.GivenName, Family: n.FamilyName}
	}

	for _, f := range card[govcard.FieldEmail] {
		c.Emails = append(c.Emails, f.Value)
	}
	for _, f := range card[govcard.FieldTelephone] {
		c.Phones = append(c.Phones, f.Value)
	}

	return c, true
}

func decodeFirst(raw []byte) (govcard.Card, error) {
	content := strings.ReplaceAll(string(raw), "\r\n", "\n")
	content = strings.ReplaceAll(content, "\n", "\r\n")
	dec := govcard.NewDecoder(strings.NewReader(content))
	return dec.Decode()
}
