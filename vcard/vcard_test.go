package vcard

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildThenTransformRoundTrip(t *testing.T) {
	raw, err := Build(ContactInput{
		FormattedName: "Ada Lovelace",
		Emails:        []string{"ada@example.com"},
		Phones:        []string{"+1-555-0100"},
		Organization:  "Analytical Engines Ltd",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(string(raw), "VERSION:3.0") {
		t.Fatalf("expected VERSION:3.0:\n%s", raw)
	}

	c, ok := Transform(raw, zerolog.Nop())
	if !ok {
		t.Fatalf("Transform returned false for a freshly built contact")
	}
	if c.FormattedName != "Ada Lovelace" {
		t.Fatalf("unexpected FN: %q", c.FormattedName)
	}
	if c.Name.Given != "Ada" || c.Name.Family != "Lovelace" {
		t.Fatalf("unexpected name split: %+v", c.Name)
	}
	if c.UID == "" {
		t.Fatalf("expected a generated UID")
	}
	if len(c.Emails) != 1 || c.Emails[0] != "ada@example.com" {
		t.Fatalf("unexpected emails: %v", c.Emails)
	}
}

func TestUpdatePreservesPhotoAndXProperties(t *testing.T) {
	raw := []byte("BEGIN:VCARD\r\n" +
		"VERSION:3.0\r\n" +
		"UID:11111111-1111-1111-1111-111111111111\r\n" +
		"FN:Grace Hopper\r\n" +
		"N:Hopper;Grace;;;\r\n" +
		"PHOTO;ENCODING=b;TYPE=JPEG:/9j/4AAQSkZJRg==\r\n" +
		"X-CUSTOM-FIELD:keep-me\r\n" +
		"item1.EMAIL:grace@example.com\r\n" +
		"item1.X-ABLabel:Work\r\n" +
		"END:VCARD\r\n")

	name := "Grace B. Hopper"
	updated, err := Update(raw, ContactChanges{FormattedName: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	s := string(updated)
	if !strings.Contains(s, "FN:Grace B. Hopper") {
		t.Fatalf("expected updated FN:\n%s", s)
	}
	if !strings.Contains(s, "PHOTO") {
		t.Fatalf("expected PHOTO preserved:\n%s", s)
	}
	if !strings.Contains(s, "X-CUSTOM-FIELD:keep-me") {
		t.Fatalf("expected X-CUSTOM-FIELD preserved:\n%s", s)
	}
	if !strings.Contains(s, "X-ABLabel:Work") {
		t.Fatalf("expected grouped X-ABLabel preserved:\n%s", s)
	}
}
