// Command agentdav-smoke wires the collaborator stack together and runs
// the startup validation of §4.3: discover calendars on one client and
// address books on the other, concurrently, under an overall deadline.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agentdav/bridge/addressbookservice"
	"github.com/agentdav/bridge/caldav"
	"github.com/agentdav/bridge/calendarservice"
	"github.com/agentdav/bridge/carddav"
	"github.com/agentdav/bridge/config"
	"github.com/agentdav/bridge/discovery"
	"github.com/agentdav/bridge/internal/webdav"
	"github.com/agentdav/bridge/invitation"
	"github.com/agentdav/bridge/logging"
	"github.com/agentdav/bridge/retry"
)

// startupDeadline bounds the concurrent discovery validation of §4.3.
const startupDeadline = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "agentdav-smoke: config:", err)
		os.Exit(1)
	}

	log := logging.New("info")
	retryCfg := retry.DefaultConfig()

	injector, err := authInjector(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("agentdav-smoke: building auth injector")
	}
	httpClient := webdav.NewInjectingClient(nil, injector)

	calClient, err := caldav.NewClient(httpClient, cfg.ServerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("agentdav-smoke: building caldav client")
	}
	cardClient, err := carddav.NewClient(httpClient, cfg.ServerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("agentdav-smoke: building carddav client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupDeadline)
	defer cancel()

	type result struct {
		calCount, bookCount int
		err                 error
	}
	calCh := make(chan result, 1)
	bookCh := make(chan result, 1)

	go func() {
		principal, err := calClient.FindCurrentUserPrincipal(ctx)
		if err != nil {
			calCh <- result{err: fmt.Errorf("caldav principal: %w", err)}
			return
		}
		homeSet, err := calClient.FindCalendarHomeSet(ctx, principal)
		if err != nil {
			calCh <- result{err: fmt.Errorf("caldav home-set: %w", err)}
			return
		}
		cals, err := discovery.DiscoverCalendars(ctx, calClient, homeSet, retryCfg, logging.Component(log, "discovery"))
		calCh <- result{calCount: len(cals), err: err}

		if err == nil {
			inboxURL, inboxErr := discovery.DiscoverSchedulingInbox(ctx, calClient, principal, retryCfg, logging.Component(log, "discovery"))
			if inboxErr == nil && inboxURL != "" {
				calSvc := calendarservice.New(calClient, homeSet, cfg.DefaultCalendarName, injector, retryCfg, logging.Component(log, "calendarservice"))
				invSvc := invitation.New(calClient, inboxURL, cfg.Username, retryCfg, logging.Component(log, "invitation"), calSvc)
				if pending, listErr := invSvc.List(ctx); listErr == nil {
					log.Info().Int("pending_invitations", len(pending)).Msg("agentdav-smoke: invitation check")
				}
			}
		}
	}()

	go func() {
		principal, err := cardClient.FindCurrentUserPrincipal(ctx)
		if err != nil {
			bookCh <- result{err: fmt.Errorf("carddav principal: %w", err)}
			return
		}
		homeSet, err := cardClient.FindAddressBookHomeSet(ctx, principal)
		if err != nil {
			bookCh <- result{err: fmt.Errorf("carddav home-set: %w", err)}
			return
		}
		books, err := discovery.DiscoverAddressBooks(ctx, cardClient, homeSet, retryCfg, logging.Component(log, "discovery"))
		bookCh <- result{bookCount: len(books), err: err}

		if err == nil && len(books) > 0 {
			bookSvc := addressbookservice.New(cardClient, homeSet, cfg.DefaultAddressBookName, injector, retryCfg, logging.Component(log, "addressbookservice"))
			if contacts, fetchErr := bookSvc.FetchContacts(ctx, books[0]); fetchErr == nil {
				log.Info().Int("contacts", len(contacts)).Str("addressbook", books[0].Name).Msg("agentdav-smoke: sampled first address book")
			}
		}
	}()

	calRes, bookRes := <-calCh, <-bookCh
	if calRes.err != nil {
		log.Error().Err(calRes.err).Msg("agentdav-smoke: calendar discovery failed")
	}
	if bookRes.err != nil {
		log.Error().Err(bookRes.err).Msg("agentdav-smoke: address book discovery failed")
	}
	if calRes.err != nil || bookRes.err != nil {
		os.Exit(1)
	}

	log.Info().
		Int("calendars", calRes.calCount).
		Int("address_books", bookRes.bookCount).
		Msg("agentdav-smoke: startup validation succeeded")
}

func authInjector(cfg config.Config) (webdav.AuthInjector, error) {
	switch cfg.AuthMode {
	case config.AuthBasic:
		return webdav.BasicAuthInjector(cfg.Username, cfg.Password), nil
	case config.AuthBearer:
		return webdav.BearerAuthInjector(cfg.Token), nil
	case config.AuthSiteSpecific:
		return webdav.HeaderAuthInjector(cfg.HeaderName, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown auth_mode %q", cfg.AuthMode)
	}
}
