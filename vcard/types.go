// Package vcard implements the parse/transform/build/edit layer over
// vCard (RFC 6350) bodies, symmetric to package ical for contacts.
// Updates are parse-modify-serialize over the github.com/emersion/go-vcard
// Card so that PHOTO, grouped properties (item1.EMAIL + item1.X-ABLabel),
// and X-* properties survive untouched.
package vcard

// Name is the structured N property.
type Name struct {
	Given  string
	Family string
}

// Contact is the domain record described in §3.3.
type Contact struct {
	UID          string
	FormattedName string
	Name         Name
	Emails       []string
	Phones       []string
	Organization string

	Raw  []byte
	ETag string
	URL  string
}

// ContactInput is the input to Build: a fresh contact to create.
type ContactInput struct {
	FormattedName string
	Emails        []string
	Phones        []string
	Organization  string
}

// ContactChanges is the input to Update. A nil field leaves the
// corresponding property untouched.
type ContactChanges struct {
	FormattedName *string
	Emails        []string // nil leaves untouched; non-nil (incl. empty) replaces
	Phones        []string
	Organization  *string
}
