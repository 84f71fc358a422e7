// Package canvas holds the wall's photo collection and writes it through to the
// persistent store after every change.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/photowall/codec"
	"github.com/camden-git/photowall/models"
	"github.com/camden-git/photowall/repository"
	"github.com/camden-git/photowall/zorder"
)

// DefaultDocumentKey is the name of the stored wall document.
const DefaultDocumentKey = "navyblue-gallery"

// BackupKey names the document an unreadable wall is copied to before the
// first write replaces it.
func BackupKey(key string) string { return key + ".unreadable" }

// ErrDuplicateID is returned by Insert when the id is already on the wall.
var ErrDuplicateID = errors.New("canvas: duplicate photo id")

// EventType names a change to the collection.
type EventType string

const (
	EventLoaded   EventType = "loaded"
	EventInserted EventType = "inserted"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
)

// Event describes one change. Photos is set for EventLoaded, Photo for
// inserts and updates, ID for every type except EventLoaded.
type Event struct {
	Type   EventType      `json:"type"`
	ID     string         `json:"id,omitempty"`
	Photo  *models.Photo  `json:"photo,omitempty"`
	Photos []models.Photo `json:"photos,omitempty"`
}

// Options configures a Store. Zero values pick the defaults.
type Options struct {
	Key     string
	Codec   *codec.Codec
	Counter *zorder.Counter
	// OnDelete runs after a photo has been removed and persisted.
	OnDelete func(models.Photo)
}

// Store is the aggregate root for the wall. All mutations are serialized in
// arrival order. Subscribers are called with the store locked and must not call
// back into it.
type Store struct {
	mu     sync.Mutex
	photos []models.Photo

	docs     repository.DocumentStore
	key      string
	codec    *codec.Codec
	counter  *zorder.Counter
	onDelete func(models.Photo)

	subscribers []func(Event)
}

func NewStore(docs repository.DocumentStore, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultDocumentKey
	}
	if opts.Codec == nil {
		opts.Codec = codec.New(codec.Viewport{Width: 1440, Height: 900})
	}
	if opts.Counter == nil {
		opts.Counter = zorder.New()
	}
	return &Store{
		photos:   []models.Photo{},
		docs:     docs,
		key:      opts.Key,
		codec:    opts.Codec,
		counter:  opts.Counter,
		onDelete: opts.OnDelete,
	}
}

// Subscribe registers fn for every subsequent change.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Load replaces the collection with the stored document and seeds the stacking
// counter. A malformed document loads as an empty wall; its body is kept under
// BackupKey so the next write does not destroy it. Captions left pending by
// an earlier process can never settle, so they get the fallback caption.
func (s *Store) Load(ctx context.Context) error {
	body, err := s.docs.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("canvas: failed to read document %s: %w", s.key, err)
	}

	photos, err := s.codec.Decode(body)
	if err != nil {
		log.Printf("canvas: WARNING stored document %s is unreadable, starting with an empty wall: %v", s.key, err)
		photos = []models.Photo{}
		backup := BackupKey(s.key)
		if err := s.docs.Save(ctx, backup, body); err != nil {
			log.Printf("canvas: ERROR backing up unreadable document to %s: %v", backup, err)
		} else {
			log.Printf("canvas: Unreadable document copied to %s", backup)
		}
	}

	settled := 0
	orders := make([]int64, 0, len(photos))
	for i := range photos {
		orders = append(orders, photos[i].StackOrder)
		if photos[i].CaptionPending {
			if photos[i].Caption == "" || photos[i].Caption == models.PendingCaption {
				photos[i].Caption = models.FallbackCaption
			}
			photos[i].CaptionPending = false
			settled++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.photos = photos
	s.counter.Seed(orders)
	log.Printf("canvas: Loaded %d photo(s) from %s, next stack order above %d", len(photos), s.key, s.counter.Peek())

	if settled > 0 {
		log.Printf("canvas: Settled %d stale pending caption(s)", settled)
		if err := s.persistLocked(ctx); err != nil {
			log.Printf("canvas: ERROR persisting settled captions: %v", err)
		}
	}
	s.publishLocked(Event{Type: EventLoaded, Photos: s.snapshotLocked()})
	return nil
}

// NextStackOrder issues a stacking value for a photo about to be inserted.
func (s *Store) NextStackOrder() int64 {
	return s.counter.Next()
}

// Insert appends p to the collection and persists.
func (s *Store) Insert(ctx context.Context, p models.Photo) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(p.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	s.photos = append(s.photos, p)
	s.publishLocked(Event{Type: EventInserted, ID: p.ID, Photo: &p})
	return s.persistLocked(ctx)
}

// Update merges patch into the photo with id. It reports false, with no error,
// when id is not on the wall.
func (s *Store) Update(ctx context.Context, id string, patch models.PhotoPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(ctx, id, patch)
}

// Focus brings the photo with id to the front.
func (s *Store) Focus(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return false, nil
	}
	order := s.counter.Next()
	return s.updateLocked(ctx, id, models.PhotoPatch{StackOrder: &order})
}

// Delete removes the photo with id. It reports false, with no error, when id
// is not on the wall.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	removed := s.photos[i]
	s.photos = append(s.photos[:i:i], s.photos[i+1:]...)
	s.publishLocked(Event{Type: EventDeleted, ID: id})
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	if s.onDelete != nil {
		s.onDelete(removed)
	}
	return true, err
}

// Get returns a copy of the photo with id.
func (s *Store) Get(id string) (models.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.Photo{}, false
	}
	return s.photos[i], true
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) updateLocked(ctx context.Context, id string, patch models.PhotoPatch) (bool, error) {
	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	s.photos[i].Apply(patch)
	updated := s.photos[i]
	s.publishLocked(Event{Type: EventUpdated, ID: id, Photo: &updated})
	return true, s.persistLocked(ctx)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.photos {
		if s.photos[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []models.Photo {
	out := make([]models.Photo, len(s.photos))
	copy(out, s.photos)
	return out
}

// persistLocked writes the whole collection. The in-memory state stays
// authoritative when the write fails.
func (s *Store) persistLocked(ctx context.Context) error {
	doc, err := s.codec.Encode(s.photos)
	if err != nil {
		return err
	}
	if err := s.docs.Save(ctx, s.key, doc); err != nil {
		log.Printf("canvas: ERROR writing document %s: %v", s.key, err)
		return fmt.Errorf("canvas: failed to persist %d photo(s): %w", len(s.photos), err)
	}
	return nil
}

func (s *Store) publishLocked(ev Event) {
	for _, fn := range s.subscribers {
		fn(ev)
	}
}
