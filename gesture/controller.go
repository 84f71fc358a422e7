// Package gesture turns pointer events into drag, resize and rotate updates on
// one photo at a time.
package gesture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/photowall/metrics"
	"github.com/camden-git/photowall/models"
)

// ErrUnknownHandle is returned for a pointer-down on a handle the controller does not know.
var ErrUnknownHandle = errors.New("gesture: unknown handle")

// Handle identifies the part of the card a pointer went down on.
type Handle string

const (
	HandleDrag   Handle = "drag"
	HandleResize Handle = "resize"
	HandleRotate Handle = "rotate"
)

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
	Rotating
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Rotating:
		return "rotating"
	}
	return "idle"
}

// EventType is the kind of pointer event.
type EventType string

const (
	PointerDown   EventType = "pointerdown"
	PointerMove   EventType = "pointermove"
	PointerUp     EventType = "pointerup"
	PointerCancel EventType = "pointercancel"
)

// Event is one pointer event in canvas coordinates. PhotoID and Handle are only
// read on PointerDown. Source identifies the connection the event arrived on;
// pointer ids are only unique within one source.
type Event struct {
	Type      EventType    `json:"type"`
	PointerID int          `json:"pointerId"`
	PhotoID   string       `json:"photoId,omitempty"`
	Handle    Handle       `json:"handle,omitempty"`
	Point     models.Point `json:"point"`
	Source    string       `json:"-"`
}

// Target is the collection the controller mutates.
type Target interface {
	Get(id string) (models.Photo, bool)
	Focus(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, patch models.PhotoPatch) (bool, error)
}

// Active describes the gesture in progress.
type Active struct {
	State   State
	PhotoID string
	// Offset is the uncommitted drag displacement. Zero for resize and rotate.
	Offset models.Point
}

type session struct {
	state     State
	source    string
	pointerID int
	photoID   string
	start     models.Point
	current   models.Point
	center    models.Point

	startPosition models.Point
	startScale    float64
	startDistance float64
	startRotation float64
}

// Controller is the single gesture state machine for the process. At most one
// gesture is active; a pointer-down while one is active closes it first.
type Controller struct {
	mu      sync.Mutex
	target  Target
	active  *session
	preview func(photoID string, offset models.Point)
}

func NewController(target Target) *Controller {
	return &Controller{target: target}
}

// OnDragPreview registers fn to receive every uncommitted drag displacement.
func (c *Controller) OnDragPreview(fn func(photoID string, offset models.Point)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = fn
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Idle
	}
	return c.active.state
}

// Active returns the gesture in progress, if any.
func (c *Controller) Active() (Active, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Active{}, false
	}
	a := Active{State: c.active.state, PhotoID: c.active.photoID}
	if c.active.state == Dragging {
		a.Offset = offset(c.active.start, c.active.current)
	}
	return a, true
}

// Dispatch feeds one pointer event through the state machine.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case PointerDown:
		return c.begin(ctx, ev)
	case PointerMove:
		if c.captured(ev) {
			return c.move(ctx, ev.Point)
		}
	case PointerUp:
		if c.captured(ev) {
			err := c.move(ctx, ev.Point)
			if c.active != nil {
				err = errors.Join(err, c.finish(ctx))
			}
			return err
		}
	case PointerCancel:
		if c.captured(ev) {
			return c.finish(ctx)
		}
	default:
		return fmt.Errorf("gesture: unknown event type %q", ev.Type)
	}
	return nil
}

func (c *Controller) captured(ev Event) bool {
	return c.active != nil && c.active.source == ev.Source && c.active.pointerID == ev.PointerID
}

func (c *Controller) begin(ctx context.Context, ev Event) error {
	var state State
	switch ev.Handle {
	case HandleDrag:
		state = Dragging
	case HandleResize:
		state = Resizing
	case HandleRotate:
		state = Rotating
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHandle, ev.Handle)
	}

	var err error
	if c.active != nil {
		log.Printf("gesture: %s on %s preempted by pointer %d", c.active.state, c.active.photoID, ev.PointerID)
		err = c.finish(ctx)
	}

	ok, focusErr := c.target.Focus(ctx, ev.PhotoID)
	if focusErr != nil {
		err = errors.Join(err, focusErr)
	}
	if !ok {
		return err
	}
	photo, ok := c.target.Get(ev.PhotoID)
	if !ok {
		return err
	}

	s := &session{
		state:         state,
		source:        ev.Source,
		pointerID:     ev.PointerID,
		photoID:       photo.ID,
		start:         ev.Point,
		current:       ev.Point,
		center:        photo.Center(),
		startPosition: photo.Position,
		startScale:    photo.Scale,
		startRotation: photo.RotationDeg,
	}
	s.startDistance = Distance(s.center, ev.Point)
	c.active = s
	return err
}

func (c *Controller) move(ctx context.Context, p models.Point) error {
	s := c.active
	s.current = p

	var patch models.PhotoPatch
	switch s.state {
	case Dragging:
		if c.preview != nil {
			c.preview(s.photoID, offset(s.start, s.current))
		}
		return nil
	case Resizing:
		d := Distance(s.center, p)
		if s.startDistance == 0 {
			// pointer went down on the center; the first non-zero distance becomes the anchor
			if d > 0 {
				s.startDistance = d
			}
			return nil
		}
		scale := ResizeScale(s.startScale, s.startDistance, d)
		patch.Scale = &scale
	case Rotating:
		rotation := s.startRotation + RotationDelta(s.center, s.start, p)
		patch.RotationDeg = &rotation
	}

	ok, err := c.target.Update(ctx, s.photoID, patch)
	if !ok {
		// photo deleted mid-gesture
		c.active = nil
	}
	return err
}

// finish commits the active gesture and returns to Idle. Only drags write on
// release; resize and rotate were applied as they moved.
func (c *Controller) finish(ctx context.Context) error {
	s := c.active
	c.active = nil
	metrics.RecordGesture(s.state.String())

	if s.state != Dragging {
		return nil
	}
	d := offset(s.start, s.current)
	if d == (models.Point{}) {
		return nil
	}
	pos := models.Point{X: s.startPosition.X + d.X, Y: s.startPosition.Y + d.Y}
	_, err := c.target.Update(ctx, s.photoID, models.PhotoPatch{Position: &pos})
	return err
}

func offset(from, to models.Point) models.Point {
	return models.Point{X: to.X - from.X, Y: to.Y - from.Y}
}
