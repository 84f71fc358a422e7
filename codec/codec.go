// Package codec converts the wall's photo collection to and from the single
// JSON document kept in the persistent store.
//
// Two document shapes exist. Version 1 is a bare array of records, as written by
// the first browser build. Version 2 wraps the array in an envelope carrying the
// version number. Both decode; only version 2 is written.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/camden-git/photowall/models"
)

// CurrentVersion is the document version written by Encode.
const CurrentVersion = 2

// Viewport bounds the random placement given to legacy records without a position.
type Viewport struct {
	Width  float64
	Height float64
}

// ParseError reports a stored document that cannot be decoded.
type ParseError struct {
	Index int // entry index, -1 for the document itself
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	prefix := "codec: malformed document"
	if e.Index >= 0 {
		prefix = fmt.Sprintf("codec: malformed entry %d", e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// record is the stored shape of one photo. Field names match the legacy
// browser storage so older documents decode unchanged.
type record struct {
	ID               string             `json:"id"`
	URL              string             `json:"url"`
	Timestamp        int64              `json:"timestamp"`
	Caption          string             `json:"caption,omitempty"`
	IsLoadingCaption bool               `json:"isLoadingCaption"`
	Rotation         float64            `json:"rotation"`
	Orientation      models.Orientation `json:"orientation"`
	X                float64            `json:"x"`
	Y                float64            `json:"y"`
	Scale            float64            `json:"scale"`
	ZIndex           int64              `json:"zIndex"`
	IsLiked          bool               `json:"isLiked"`
	FilterType       models.Style       `json:"filterType"`
}

type envelope struct {
	Version int               `json:"version"`
	Photos  []json.RawMessage `json:"photos"`
}

type outEnvelope struct {
	Version int      `json:"version"`
	Photos  []record `json:"photos"`
}

// Codec encodes and decodes wall documents.
type Codec struct {
	viewport Viewport
	random   func() float64
}

// New returns a codec whose migration places position-less records inside viewport.
func New(viewport Viewport) *Codec {
	return &Codec{viewport: viewport, random: rand.Float64}
}

// WithRandom replaces the random source used by position migration.
func (c *Codec) WithRandom(random func() float64) *Codec {
	c.random = random
	return c
}

// Encode produces a version 2 document. Photos keep their slice order.
func (c *Codec) Encode(photos []models.Photo) ([]byte, error) {
	out := outEnvelope{Version: CurrentVersion, Photos: make([]record, 0, len(photos))}
	for _, p := range photos {
		out.Photos = append(out.Photos, toRecord(p))
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to encode %d photos: %w", len(photos), err)
	}
	return data, nil
}

// Decode parses a stored document of any known version. An empty or null
// document is an empty collection. Every failure is a *ParseError.
func (c *Codec) Decode(doc []byte) ([]models.Photo, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Photo{}, nil
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &ParseError{Index: -1, Msg: "invalid array", Err: err}
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &ParseError{Index: -1, Msg: "invalid envelope", Err: err}
		}
		if env.Version < 1 || env.Version > CurrentVersion {
			return nil, &ParseError{Index: -1, Msg: fmt.Sprintf("unsupported version %d", env.Version)}
		}
		entries = env.Photos
	default:
		return nil, &ParseError{Index: -1, Msg: "not a collection"}
	}

	env := migrateEnv{viewport: c.viewport, random: c.random}
	photos := make([]models.Photo, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, raw := range entries {
		p, err := decodeEntry(env, raw)
		if err != nil {
			return nil, &ParseError{Index: i, Msg: "invalid record", Err: err}
		}
		if seen[p.ID] {
			return nil, &ParseError{Index: i, Msg: fmt.Sprintf("duplicate id %q", p.ID)}
		}
		seen[p.ID] = true
		photos = append(photos, p)
	}
	return photos, nil
}

func decodeEntry(env migrateEnv, raw json.RawMessage) (models.Photo, error) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil || entry == nil {
		return models.Photo{}, errors.New("entry is not an object")
	}
	for _, field := range []string{"id", "url"} {
		var s string
		if err := json.Unmarshal(entry[field], &s); err != nil || s == "" {
			return models.Photo{}, fmt.Errorf("missing required field %q", field)
		}
	}
	if err := migrateEntry(env, entry); err != nil {
		return models.Photo{}, err
	}

	migrated, err := json.Marshal(entry)
	if err != nil {
		return models.Photo{}, err
	}
	var rec record
	if err := json.Unmarshal(migrated, &rec); err != nil {
		return models.Photo{}, err
	}

	p := fromRecord(rec)
	if err := p.Validate(); err != nil {
		return models.Photo{}, err
	}
	return p, nil
}

func toRecord(p models.Photo) record {
	return record{
		ID:               p.ID,
		URL:              p.ImageRef,
		Timestamp:        p.CreatedAt.UnixMilli(),
		Caption:          p.Caption,
		IsLoadingCaption: p.CaptionPending,
		Rotation:         p.RotationDeg,
		Orientation:      p.Orientation,
		X:                p.Position.X,
		Y:                p.Position.Y,
		Scale:            p.Scale,
		ZIndex:           p.StackOrder,
		IsLiked:          p.Liked,
		FilterType:       p.Style,
	}
}

func fromRecord(r record) models.Photo {
	scale := r.Scale
	if scale > 0 {
		scale = models.ClampScale(scale)
	}
	return models.Photo{
		ID:             r.ID,
		ImageRef:       r.URL,
		CreatedAt:      time.UnixMilli(r.Timestamp).UTC(),
		Caption:        r.Caption,
		CaptionPending: r.IsLoadingCaption,
		RotationDeg:    r.Rotation,
		Orientation:    r.Orientation,
		Position:       models.Point{X: r.X, Y: r.Y},
		Scale:          scale,
		StackOrder:     r.ZIndex,
		Liked:          r.IsLiked,
		Style:          r.FilterType,
	}
}
