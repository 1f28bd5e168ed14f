// Package addressbookservice implements the L3 address-book service of
// §4.8: symmetric to calendarservice for vCards, plus a fallback from a
// zero-result multiGet to an addressbook-query that returns every body,
// for servers that don't support bulk multiGet.
package addressbookservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/cache"
	"github.com/agentdav/bridge/carddav"
	"github.com/agentdav/bridge/daverr"
	"github.com/agentdav/bridge/internal/webdav"
	"github.com/agentdav/bridge/retry"
	"github.com/agentdav/bridge/vcard"
)

// Service implements §4.8. One Service serves one CardDAV account.
type Service struct {
	client          *carddav.Client
	addressBookHome string
	defaultName     string
	authHeader      func(*http.Request)
	retryCfg        retry.Config
	log             zerolog.Logger

	mu            sync.Mutex
	addressBooks  []carddav.AddressBook

	objCache *cache.Cache[carddav.AddressObject]
}

func New(client *carddav.Client, addressBookHome, defaultAddressBookName string, authHeader func(*http.Request), retryCfg retry.Config, log zerolog.Logger) *Service {
	return &Service{
		client:          client,
		addressBookHome: addressBookHome,
		defaultName:     defaultAddressBookName,
		authHeader:      authHeader,
		retryCfg:        retryCfg,
		log:             log,
		objCache:        cache.New[carddav.AddressObject](),
	}
}

// ListAddressBooks discovers address books on first call and caches them
// on the service instance until RefreshAddressBooks is called.
func (s *Service) ListAddressBooks(ctx context.Context) ([]carddav.AddressBook, error) {
	s.mu.Lock()
	if s.addressBooks != nil {
		defer s.mu.Unlock()
		return s.addressBooks, nil
	}
	s.mu.Unlock()

	var books []carddav.AddressBook
	err := retry.Do(ctx, s.log, s.retryCfg, "list_addressbooks", func(ctx context.Context) error {
		var err error
		books, err = s.client.FindAddressBooks(ctx, s.addressBookHome)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.addressBooks = books
	s.mu.Unlock()
	s.log.Info().Int("count", len(books)).Msg("addressbookservice: discovered address books")
	return books, nil
}

// RefreshAddressBooks re-discovers address books and clears the object
// cache, since collection URLs may have changed.
func (s *Service) RefreshAddressBooks(ctx context.Context) error {
	s.mu.Lock()
	s.addressBooks = nil
	s.mu.Unlock()
	s.objCache.Clear()
	_, err := s.ListAddressBooks(ctx)
	return err
}

func (s *Service) resolveAddressBook(ctx context.Context, name string) (*carddav.AddressBook, error) {
	books, err := s.ListAddressBooks(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = s.defaultName
	}
	if name == "" {
		if len(books) == 0 {
			return nil, daverr.NewNotFound(daverr.ResourceContact, "no address books available")
		}
		return &books[0], nil
	}
	for i := range books {
		if strings.EqualFold(books[i].Name, name) {
			return &books[i], nil
		}
	}
	return nil, daverr.NewNotFound(daverr.ResourceContact, fmt.Sprintf("address book named %q", name))
}

// FetchContacts implements the CTag-aware fetch policy of §4.7, applied
// to address books per §4.8. The full-body fetch tries a bulk multiGet
// first (listing paths, then fetching bodies in one REPORT); a
// zero-result multiGet falls back to an addressbook-query REPORT, which
// carries the bodies itself.
func (s *Service) FetchContacts(ctx context.Context, book carddav.AddressBook) ([]*vcard.Contact, error) {
	if s.objCache.IsFresh(book.Path, book.CTag) {
		entry, _ := s.objCache.Get(book.Path)
		return transformAll(entry.Objects, s.log), nil
	}

	if _, ok := s.objCache.Get(book.Path); ok {
		var currentCTag string
		err := retry.Do(ctx, s.log, s.retryCfg, "ctag_dirty_check", func(ctx context.Context) error {
			var err error
			currentCTag, err = s.client.GetCollectionCTag(ctx, book.Path)
			return err
		})
		if err == nil && currentCTag == book.CTag {
			entry, _ := s.objCache.Get(book.Path)
			s.objCache.Set(book.Path, currentCTag, entry.Objects)
			return transformAll(entry.Objects, s.log), nil
		}
	}

	objs, err := s.fetchAll(ctx, book.Path)
	if err != nil {
		return nil, err
	}

	var newCTag string
	_ = retry.Do(ctx, s.log, s.retryCfg, "ctag_refresh", func(ctx context.Context) error {
		var err error
		newCTag, err = s.client.GetCollectionCTag(ctx, book.Path)
		return err
	})
	s.objCache.Set(book.Path, newCTag, objs)

	return transformAll(objs, s.log), nil
}

// fetchAll lists every object path in the collection, then fetches
// bodies via a single multiGet REPORT. Per §4.8, a zero-result multiGet
// (some servers don't implement it) falls back to addressbook-query
// (QueryAll) which carries bodies directly.
func (s *Service) fetchAll(ctx context.Context, path string) ([]carddav.AddressObject, error) {
	var paths []string
	err := retry.Do(ctx, s.log, s.retryCfg, "list_object_paths", func(ctx context.Context) error {
		var err error
		paths, err = s.client.ListObjectPaths(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	var objs []carddav.AddressObject
	err = retry.Do(ctx, s.log, s.retryCfg, "multiget_contacts", func(ctx context.Context) error {
		var err error
		objs, err = s.client.Multiget(ctx, path, paths)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(objs) > 0 {
		return objs, nil
	}

	s.log.Warn().Str("path", path).Msg("addressbookservice: multiGet returned zero results, falling back to query-all")
	err = retry.Do(ctx, s.log, s.retryCfg, "query_all_contacts", func(ctx context.Context) error {
		var err error
		objs, err = s.client.QueryAll(ctx, path)
		return err
	})
	return objs, err
}

func transformAll(objs []carddav.AddressObject, log zerolog.Logger) []*vcard.Contact {
	out := make([]*vcard.Contact, 0, len(objs))
	for _, o := range objs {
		c, ok := vcard.Transform(o.Data, log)
		if !ok {
			continue
		}
		c.ETag = o.ETag
		c.URL = o.Path
		out = append(out, c)
	}
	return out
}

// FetchContactsByName matches an address book by display name,
// case-insensitive. A miss logs a warning and returns an empty slice.
func (s *Service) FetchContactsByName(ctx context.Context, name string) ([]*vcard.Contact, error) {
	books, err := s.ListAddressBooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		if strings.EqualFold(b.Name, name) {
			return s.FetchContacts(ctx, b)
		}
	}
	s.log.Warn().Str("addressbook", name).Msg("addressbookservice: no address book with that name")
	return nil, nil
}

// FetchAllContacts fans out over every discovered address book
// concurrently.
func (s *Service) FetchAllContacts(ctx context.Context) ([]*vcard.Contact, error) {
	books, err := s.ListAddressBooks(ctx)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	results := make([][]*vcard.Contact, len(books))
	errs := make([]error, len(books))

	for i, b := range books {
		wg.Add(1)
		go func(i int, b carddav.AddressBook) {
			defer wg.Done()
			results[i], errs[i] = s.FetchContacts(ctx, b)
		}(i, b)
	}
	wg.Wait()

	var all []*vcard.Contact
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("addressbookservice: fetching address book %q: %w", books[i].Name, err)
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// CreateContact resolves the target address book (by name, or the
// first), generates a fresh filename (UUID + .vcf), and PUTs with
// If-None-Match: *. A 412 becomes a typed "already exists" Conflict.
func (s *Service) CreateContact(ctx context.Context, vcardText string, addressBookName string) (url, etag string, err error) {
	book, err := s.resolveAddressBook(ctx, addressBookName)
	if err != nil {
		return "", "", err
	}

	path := strings.TrimRight(book.Path, "/") + "/" + uuid.NewString() + ".vcf"

	var obj *carddav.AddressObject
	putErr := retryNoConflict(ctx, s.log, s.retryCfg, "create_contact", func(ctx context.Context) error {
		var err error
		obj, err = s.client.PutAddressObject(ctx, path, []byte(vcardText), &carddav.PutAddressObjectOptions{IfNoneMatch: "*"})
		return classifyConflict(err, daverr.ResourceContact, path, "create")
	})
	if putErr != nil {
		return "", "", putErr
	}

	s.objCache.Invalidate(book.Path)
	return obj.Path, obj.ETag, nil
}

// UpdateContact PUTs with If-Match: etag; a 412 becomes a typed
// Conflict.
func (s *Service) UpdateContact(ctx context.Context, url, vcardText, etag string) (newETag string, err error) {
	var obj *carddav.AddressObject
	putErr := retryNoConflict(ctx, s.log, s.retryCfg, "update_contact", func(ctx context.Context) error {
		var err error
		obj, err = s.client.PutAddressObject(ctx, url, []byte(vcardText), &carddav.PutAddressObjectOptions{IfMatch: etag})
		return classifyConflict(err, daverr.ResourceContact, url, "update")
	})
	if putErr != nil {
		return "", putErr
	}

	s.objCache.Invalidate(containingCollection(url))
	return obj.ETag, nil
}

// DeleteContact deletes the object at url. If etag is empty, the
// containing collection is fetched to find the current ETag; a missing
// object after that lookup is a fatal NotFound, not a silent success.
func (s *Service) DeleteContact(ctx context.Context, url, etag string) error {
	if etag == "" {
		objs, err := s.fetchAll(ctx, containingCollection(url))
		if err != nil {
			return err
		}
		found := false
		for _, o := range objs {
			if sameResourcePath(o.Path, url) {
				etag = o.ETag
				found = true
				break
			}
		}
		if !found {
			return daverr.NewNotFound(daverr.ResourceContact, url)
		}
	}

	delErr := retryNoConflict(ctx, s.log, s.retryCfg, "delete_contact", func(ctx context.Context) error {
		return classifyConflict(s.client.DeleteAddressObject(ctx, url, etag), daverr.ResourceContact, url, "delete")
	})
	if delErr != nil {
		return delErr
	}

	s.objCache.Invalidate(containingCollection(url))
	return nil
}

// FindContactByUID fetches contacts (scoped to addressBookName, or every
// address book when empty) and returns the first record whose UID
// matches.
func (s *Service) FindContactByUID(ctx context.Context, uid, addressBookName string) (*vcard.Contact, error) {
	var contacts []*vcard.Contact
	var err error
	if addressBookName != "" {
		contacts, err = s.FetchContactsByName(ctx, addressBookName)
	} else {
		contacts, err = s.FetchAllContacts(ctx)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		if c.UID == uid {
			return c, nil
		}
	}
	return nil, nil
}

// GetAuthHeaders reconstructs the headers the client's injector would
// attach, mirroring calendarservice.Service.GetAuthHeaders.
func (s *Service) GetAuthHeaders() http.Header {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	s.authHeader(req)
	return req.Header
}

// retryNoConflict mirrors calendarservice's helper of the same name: a
// *daverr.Conflict returned by fn stops the retry loop immediately and
// is surfaced as-is, per §7's "ETag conflict is never retried" rule.
func retryNoConflict(ctx context.Context, log zerolog.Logger, cfg retry.Config, op string, fn func(context.Context) error) error {
	var conflict *daverr.Conflict
	err := retry.Do(ctx, log, cfg, op, func(ctx context.Context) error {
		e := fn(ctx)
		if c, ok := e.(*daverr.Conflict); ok {
			conflict = c
			return nil
		}
		return e
	})
	if conflict != nil {
		return conflict
	}
	return err
}

func classifyConflict(err error, kind daverr.ResourceKind, url, op string) error {
	if err == nil {
		return nil
	}
	if httpErr, ok := err.(*webdav.HTTPError); ok && httpErr.Code == http.StatusPreconditionFailed {
		return daverr.NewConflict(kind, url, op)
	}
	return err
}

func containingCollection(objURL string) string {
	idx := strings.LastIndex(strings.TrimRight(objURL, "/"), "/")
	if idx < 0 {
		return objURL
	}
	return objURL[:idx+1]
}

func sameResourcePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
