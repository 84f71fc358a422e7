package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPhoto is returned (wrapped) when a photo fails field validation.
var ErrInvalidPhoto = errors.New("invalid photo")

// Scale bounds for a card on the wall.
const (
	MinScale = 0.5
	MaxScale = 2.5
)

// PendingCaption is shown on a card while its caption is being generated.
const PendingCaption = "developing..."

// FallbackCaption replaces any caption that could not be generated.
const FallbackCaption = "untitled"

// Orientation is the aspect class of the source image. It fixes the card footprint.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
	OrientationSquare    Orientation = "square"
)

// Valid reports whether o is one of the known orientation classes.
func (o Orientation) Valid() bool {
	switch o {
	case OrientationPortrait, OrientationLandscape, OrientationSquare:
		return true
	}
	return false
}

// Footprint returns the unscaled card size in canvas units.
// Landscape cards are wider and shorter; portrait and square share the tall frame.
func (o Orientation) Footprint() (width, height float64) {
	if o == OrientationLandscape {
		return 320, 310
	}
	return 260, 380
}

// Style selects the presentation filter applied to the card image.
type Style string

const (
	StylePolaroid Style = "polaroid"
	StyleLeica    Style = "leica"
	StyleFuji     Style = "fuji"
)

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	switch s {
	case StylePolaroid, StyleLeica, StyleFuji:
		return true
	}
	return false
}

// Point is a top-left anchored position in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Photo is one card on the wall.
// ID, ImageRef, CreatedAt and Orientation never change after construction.
type Photo struct {
	ID             string      `json:"id"`
	ImageRef       string      `json:"image_ref"`
	CreatedAt      time.Time   `json:"created_at"`
	Caption        string      `json:"caption,omitempty"`
	CaptionPending bool        `json:"caption_pending"`
	RotationDeg    float64     `json:"rotation_deg"`
	Orientation    Orientation `json:"orientation"`
	Position       Point       `json:"position"`
	Scale          float64     `json:"scale"`
	StackOrder     int64       `json:"stack_order"`
	Liked          bool        `json:"liked"`
	Style          Style       `json:"style"`
}

// NewPhotoParams holds the caller-chosen fields for a new photo.
type NewPhotoParams struct {
	ImageRef     string
	Orientation  Orientation
	RotationSeed float64
	Position     Point
	StackOrder   int64
	Style        Style
	// CreatedAt defaults to the current time when zero.
	CreatedAt time.Time
}

// NewPhoto builds a fully initialised photo with scale 1, an empty caption and
// captioning pending.
func NewPhoto(params NewPhotoParams) (Photo, error) {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	style := params.Style
	if style == "" {
		style = StylePolaroid
	}

	p := Photo{
		ID:             uuid.NewString(),
		ImageRef:       params.ImageRef,
		CreatedAt:      time.UnixMilli(createdAt.UnixMilli()).UTC(),
		CaptionPending: true,
		RotationDeg:    params.RotationSeed,
		Orientation:    params.Orientation,
		Position:       params.Position,
		Scale:          1,
		StackOrder:     params.StackOrder,
		Style:          style,
	}
	if err := p.Validate(); err != nil {
		return Photo{}, err
	}
	return p, nil
}

// Validate checks the structural invariants of a photo.
func (p Photo) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidPhoto)
	case p.ImageRef == "":
		return fmt.Errorf("%w: missing image reference", ErrInvalidPhoto)
	case !p.Orientation.Valid():
		return fmt.Errorf("%w: unknown orientation %q", ErrInvalidPhoto, p.Orientation)
	case !p.Style.Valid():
		return fmt.Errorf("%w: unknown style %q", ErrInvalidPhoto, p.Style)
	case !p.Position.finite():
		return fmt.Errorf("%w: non-finite position (%v, %v)", ErrInvalidPhoto, p.Position.X, p.Position.Y)
	case !isFinite(p.RotationDeg):
		return fmt.Errorf("%w: non-finite rotation %v", ErrInvalidPhoto, p.RotationDeg)
	case !isFinite(p.Scale) || p.Scale <= 0:
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidPhoto, p.Scale)
	}
	return nil
}

// Center returns the visual center of the card. Scale and rotation are applied
// about the center, so only position and footprint matter.
func (p Photo) Center() Point {
	w, h := p.Orientation.Footprint()
	return Point{X: p.Position.X + w/2, Y: p.Position.Y + h/2}
}

// PhotoPatch carries the mutable fields of a partial update. Nil fields are left alone.
type PhotoPatch struct {
	Caption        *string  `json:"caption,omitempty"`
	CaptionPending *bool    `json:"caption_pending,omitempty"`
	RotationDeg    *float64 `json:"rotation_deg,omitempty"`
	Position       *Point   `json:"position,omitempty"`
	Scale          *float64 `json:"scale,omitempty"`
	StackOrder     *int64   `json:"stack_order,omitempty"`
	Liked          *bool    `json:"liked,omitempty"`
	Style          *Style   `json:"style,omitempty"`
}

// Apply merges patch into p. Scale is clamped to [MinScale, MaxScale];
// non-finite numbers and unknown styles are ignored.
func (p *Photo) Apply(patch PhotoPatch) {
	if patch.Caption != nil {
		p.Caption = *patch.Caption
	}
	if patch.CaptionPending != nil {
		p.CaptionPending = *patch.CaptionPending
	}
	if patch.RotationDeg != nil && isFinite(*patch.RotationDeg) {
		p.RotationDeg = *patch.RotationDeg
	}
	if patch.Position != nil && patch.Position.finite() {
		p.Position = *patch.Position
	}
	if patch.Scale != nil && isFinite(*patch.Scale) {
		p.Scale = ClampScale(*patch.Scale)
	}
	if patch.StackOrder != nil {
		p.StackOrder = *patch.StackOrder
	}
	if patch.Liked != nil {
		p.Liked = *patch.Liked
	}
	if patch.Style != nil && patch.Style.Valid() {
		p.Style = *patch.Style
	}
}

// ClampScale bounds s to [MinScale, MaxScale]. NaN maps to 1.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Min(math.Max(s, MinScale), MaxScale)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
