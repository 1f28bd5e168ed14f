// Package discovery implements §4.4: thin, retried PROPFIND-style
// operations used during startup validation (§4.3) and by the
// invitation workflow.
package discovery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/caldav"
	"github.com/agentdav/bridge/carddav"
	"github.com/agentdav/bridge/retry"
)

// DiscoverCalendars runs FindCalendars through the retry engine and logs
// the count at info, per-collection names at debug.
func DiscoverCalendars(ctx context.Context, client *caldav.Client, calendarHomeSet string, retryCfg retry.Config, log zerolog.Logger) ([]caldav.Calendar, error) {
	var cals []caldav.Calendar
	err := retry.Do(ctx, log, retryCfg, "discover_calendars", func(ctx context.Context) error {
		var err error
		cals, err = client.FindCalendars(ctx, calendarHomeSet)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(cals)).Msg("discovery: found calendars")
	for _, c := range cals {
		log.Debug().Str("path", c.Path).Str("name", c.Name).Msg("discovery: calendar")
	}
	return cals, nil
}

// DiscoverAddressBooks runs FindAddressBooks through the retry engine
// and logs the count at info, per-collection names at debug.
func DiscoverAddressBooks(ctx context.Context, client *carddav.Client, addressBookHomeSet string, retryCfg retry.Config, log zerolog.Logger) ([]carddav.AddressBook, error) {
	var books []carddav.AddressBook
	err := retry.Do(ctx, log, retryCfg, "discover_address_books", func(ctx context.Context) error {
		var err error
		books, err = client.FindAddressBooks(ctx, addressBookHomeSet)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("count", len(books)).Msg("discovery: found address books")
	for _, b := range books {
		log.Debug().Str("path", b.Path).Str("name", b.Name).Msg("discovery: address book")
	}
	return books, nil
}

// DiscoverSchedulingInbox attempts to locate the per-user scheduling
// inbox. A 404 or equivalent "not supported" response is not an error:
// FindScheduleInboxURL already collapses that case to ("", nil), so an
// empty string here means the invitation workflow silently downgrades.
func DiscoverSchedulingInbox(ctx context.Context, client *caldav.Client, principal string, retryCfg retry.Config, log zerolog.Logger) (string, error) {
	var inbox string
	err := retry.Do(ctx, log, retryCfg, "discover_scheduling_inbox", func(ctx context.Context) error {
		var err error
		inbox, err = client.FindScheduleInboxURL(ctx, principal)
		return err
	})
	if err != nil {
		return "", err
	}
	if inbox == "" {
		log.Info().Msg("discovery: no scheduling inbox; invitation features disabled")
	} else {
		log.Debug().Str("path", inbox).Msg("discovery: scheduling inbox")
	}
	return inbox, nil
}
