// Package invitation implements the L3 invitation-handling slice of
// §3.3/§4.7: listing pending invitations out of the scheduling inbox
// and responding to one with a participation-status update. Per the
// spec's Non-goals, there is no broader scheduling-inbox automation —
// only this narrow read+respond slice.
package invitation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/caldav"
	"github.com/agentdav/bridge/calendarservice"
	"github.com/agentdav/bridge/ical"
	"github.com/agentdav/bridge/retry"
)

// Pending is an event the user has been invited to but not yet
// responded to: organizer, proposed start/end, the user's current
// PARTSTAT, and the raw body retained for the eventual respond() call.
type Pending struct {
	UID        string
	Summary    string
	Start      time.Time
	End        time.Time
	Organizer  string
	PartStat   string
	URL        string
	ETag       string
	RawBody    []byte
}

// Service lists and responds to invitations delivered to a scheduling
// inbox. It is absent (empty inboxPath) when discovery found no inbox,
// in which case List always returns an empty slice per §4.4's silent
// downgrade.
type Service struct {
	client    *caldav.Client
	inboxPath string
	userEmail string
	retryCfg  retry.Config
	log       zerolog.Logger
	calSvc    *calendarservice.Service
}

func New(client *caldav.Client, inboxPath, userEmail string, retryCfg retry.Config, log zerolog.Logger, calSvc *calendarservice.Service) *Service {
	return &Service{
		client:    client,
		inboxPath: inboxPath,
		userEmail: userEmail,
		retryCfg:  retryCfg,
		log:       log,
		calSvc:    calSvc,
	}
}

// Enabled reports whether a scheduling inbox was found at discovery
// time. Callers should skip invitation features entirely when false.
func (s *Service) Enabled() bool {
	return s.inboxPath != ""
}

// List fetches the scheduling inbox's objects and returns every event
// where the user's own ATTENDEE entry has PARTSTAT=NEEDS-ACTION (the
// RFC 6638 marker for "not yet responded").
func (s *Service) List(ctx context.Context) ([]Pending, error) {
	if !s.Enabled() {
		return nil, nil
	}

	var objs []caldav.CalendarObject
	err := retry.Do(ctx, s.log, s.retryCfg, "list_invitations", func(ctx context.Context) error {
		var err error
		objs, err = s.client.CalendarQueryRange(ctx, s.inboxPath, time.Time{}, time.Time{})
		return err
	})
	if err != nil {
		return nil, err
	}

	target := strings.TrimPrefix(strings.ToLower(s.userEmail), "mailto:")
	var pending []Pending
	for _, o := range objs {
		ev, ok := ical.Transform(o.Data, s.log)
		if !ok {
			continue
		}
		for _, a := range ev.Attendees {
			if strings.TrimPrefix(strings.ToLower(a.Email), "mailto:") != target {
				continue
			}
			if strings.EqualFold(a.PartStat, "NEEDS-ACTION") {
				pending = append(pending, Pending{
					UID:       ev.UID,
					Summary:   ev.Summary,
					Start:     ev.Start,
					End:       ev.End,
					Organizer: ev.Organizer,
					PartStat:  a.PartStat,
					URL:       o.Path,
					ETag:      o.ETag,
					RawBody:   o.Data,
				})
			}
			break
		}
	}

	s.log.Info().Int("count", len(pending)).Msg("invitation: pending invitations")
	return pending, nil
}

// Respond updates the user's PARTSTAT on the invitation and PUTs it
// back to the URL it was listed at (p.URL), delegating the
// parse-modify-serialize-and-write work to calendarservice so the same
// ETag/conflict rules apply.
func (s *Service) Respond(ctx context.Context, p Pending, partstat string) (newETag string, err error) {
	return s.calSvc.RespondToInvitation(ctx, p.URL, p.ETag, s.userEmail, partstat, p.RawBody)
}
