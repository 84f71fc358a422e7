package gesture

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photowall/canvas"
	"github.com/camden-git/photowall/models"
	"github.com/camden-git/photowall/repository"
)

type fixture struct {
	docs  *repository.MemoryDocumentStore
	store *canvas.Store
	ctrl  *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := repository.NewMemoryDocumentStore()
	store := canvas.NewStore(docs, canvas.Options{})
	require.NoError(t, store.Load(context.Background()))
	return &fixture{docs: docs, store: store, ctrl: NewController(store)}
}

// addPhoto places a portrait card at (100,100); its center is (230,290).
func (f *fixture) addPhoto(t *testing.T, rotation float64) models.Photo {
	t.Helper()
	p, err := models.NewPhoto(models.NewPhotoParams{
		ImageRef:     "originals/p.jpg",
		Orientation:  models.OrientationPortrait,
		RotationSeed: rotation,
		Position:     models.Point{X: 100, Y: 100},
		StackOrder:   f.store.NextStackOrder(),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Insert(context.Background(), p))
	return p
}

func (f *fixture) send(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, f.ctrl.Dispatch(context.Background(), ev))
}

func (f *fixture) get(t *testing.T, id string) models.Photo {
	t.Helper()
	p, ok := f.store.Get(id)
	require.True(t, ok)
	return p
}

func pt(x, y float64) models.Point { return models.Point{X: x, Y: y} }

var center = pt(230, 290)

func around(dx, dy float64) models.Point { return pt(center.X+dx, center.Y+dy) }

func TestDragCommitsOnceOnRelease(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(200, 200)})
	assert.Equal(t, Dragging, f.ctrl.State())
	writesAfterDown := f.docs.Writes()

	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(210, 220)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(250, 260)})

	active, ok := f.ctrl.Active()
	require.True(t, ok)
	assert.Equal(t, pt(50, 60), active.Offset)
	assert.Equal(t, p.Position, f.get(t, p.ID).Position, "drag is visual-only until release")
	assert.Equal(t, writesAfterDown, f.docs.Writes())

	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: pt(260, 270)})
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, pt(160, 170), f.get(t, p.ID).Position)
	assert.Equal(t, writesAfterDown+1, f.docs.Writes())
}

func TestDragPreviewReportsOffsets(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	var offsets []models.Point
	f.ctrl.OnDragPreview(func(id string, off models.Point) {
		assert.Equal(t, p.ID, id)
		offsets = append(offsets, off)
	})

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(3, 4)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(-1, 2)})
	assert.Equal(t, []models.Point{pt(3, 4), pt(-1, 2)}, offsets)
}

func TestClickWithoutMovementDoesNotWritePosition(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(5, 5)})
	writes := f.docs.Writes()
	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: pt(5, 5)})
	assert.Equal(t, writes, f.docs.Writes())
	assert.Equal(t, p.Position, f.get(t, p.ID).Position)
}

func TestGestureStartBringsToFront(t *testing.T) {
	f := newFixture(t)
	a := f.addPhoto(t, 0)
	b := f.addPhoto(t, 0)
	require.Greater(t, b.StackOrder, a.StackOrder)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: a.ID, Handle: HandleRotate, Point: around(50, 0)})
	assert.Greater(t, f.get(t, a.ID).StackOrder, f.get(t, b.ID).StackOrder)
}

func TestResizeScalesLiveAndClamps(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 7, PhotoID: p.ID, Handle: HandleResize, Point: around(100, 0)})
	assert.Equal(t, Resizing, f.ctrl.State())

	f.send(t, Event{Type: PointerMove, PointerID: 7, Point: around(0, 200)})
	assert.InDelta(t, 2.0, f.get(t, p.ID).Scale, 1e-9)

	f.send(t, Event{Type: PointerMove, PointerID: 7, Point: around(5000, 5000)})
	assert.Equal(t, models.MaxScale, f.get(t, p.ID).Scale)

	f.send(t, Event{Type: PointerMove, PointerID: 7, Point: around(1, 0)})
	assert.Equal(t, models.MinScale, f.get(t, p.ID).Scale)

	f.send(t, Event{Type: PointerMove, PointerID: 7, Point: around(-80, 60)})
	assert.InDelta(t, 1.0, f.get(t, p.ID).Scale, 1e-9)

	f.send(t, Event{Type: PointerUp, PointerID: 7, Point: around(-80, 60)})
	assert.Equal(t, Idle, f.ctrl.State())
}

func TestResizeFromExactCenterNeverDividesByZero(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleResize, Point: center})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: center})
	got := f.get(t, p.ID).Scale
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 1.0, got)

	// first non-zero distance anchors the gesture
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: around(50, 0)})
	assert.Equal(t, 1.0, f.get(t, p.ID).Scale)

	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: around(75, 0)})
	assert.InDelta(t, 1.5, f.get(t, p.ID).Scale, 1e-9)
}

func TestRotateComposesAdditively(t *testing.T) {
	cases := []struct {
		name  string
		to    models.Point
		delta float64
	}{
		{"clockwise quarter", around(0, 100), 90},
		{"counter-clockwise quarter", around(0, -100), -90},
		{"eighth", around(100, 100), 45},
		{"none", around(300, 0), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.addPhoto(t, 2.5)

			f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleRotate, Point: around(100, 0)})
			f.send(t, Event{Type: PointerMove, PointerID: 1, Point: c.to})
			assert.InDelta(t, 2.5+c.delta, f.get(t, p.ID).RotationDeg, 1e-9)
			f.send(t, Event{Type: PointerUp, PointerID: 1, Point: c.to})
			assert.InDelta(t, 2.5+c.delta, f.get(t, p.ID).RotationDeg, 1e-9)
		})
	}
}

func TestRotationIsUnbounded(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 170)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleRotate, Point: around(100, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: around(0, 100)})
	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: around(0, 100)})
	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleRotate, Point: around(100, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: around(0, 100)})
	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: around(0, 100)})

	got := f.get(t, p.ID)
	assert.InDelta(t, 350, got.RotationDeg, 1e-9)
}

func TestOtherPointersAreIgnoredWhileCaptured(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 2, Point: pt(500, 500)})
	f.send(t, Event{Type: PointerUp, PointerID: 2, Point: pt(500, 500)})
	assert.Equal(t, Dragging, f.ctrl.State())

	active, _ := f.ctrl.Active()
	assert.Equal(t, models.Point{}, active.Offset)
}

func TestSamePointerIDFromAnotherSourceIsIgnored(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, Source: "a", PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, Source: "b", PointerID: 1, Point: pt(400, 400)})
	f.send(t, Event{Type: PointerUp, Source: "b", PointerID: 1, Point: pt(400, 400)})
	assert.Equal(t, Dragging, f.ctrl.State())
	assert.Equal(t, p.Position, f.get(t, p.ID).Position)

	f.send(t, Event{Type: PointerUp, Source: "a", PointerID: 1, Point: pt(5, 5)})
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, pt(105, 105), f.get(t, p.ID).Position)
}

func TestCancelReturnsToIdleAndCommitsDrag(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(10, -10)})
	f.send(t, Event{Type: PointerCancel, PointerID: 1})

	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, pt(110, 90), f.get(t, p.ID).Position)
}

func TestSecondStartPreemptsFirst(t *testing.T) {
	f := newFixture(t)
	a := f.addPhoto(t, 0)
	b := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: a.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(20, 30)})
	f.send(t, Event{Type: PointerDown, PointerID: 2, PhotoID: b.ID, Handle: HandleResize, Point: around(100, 0)})

	active, ok := f.ctrl.Active()
	require.True(t, ok)
	assert.Equal(t, Resizing, active.State)
	assert.Equal(t, b.ID, active.PhotoID)
	assert.Equal(t, pt(120, 130), f.get(t, a.ID).Position)

	// the first pointer no longer drives anything
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(900, 900)})
	assert.Equal(t, pt(120, 130), f.get(t, a.ID).Position)
	assert.Equal(t, 1.0, f.get(t, b.ID).Scale)
}

func TestDeletedPhotoEndsGesture(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleRotate, Point: around(100, 0)})
	_, err := f.store.Delete(context.Background(), p.ID)
	require.NoError(t, err)

	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: around(0, 100)})
	assert.Equal(t, Idle, f.ctrl.State())
	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: around(0, 100)})
	assert.Empty(t, f.store.List())
}

func TestDeletedPhotoDragReleaseIsNoop(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: HandleDrag, Point: pt(0, 0)})
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(5, 5)})
	_, err := f.store.Delete(context.Background(), p.ID)
	require.NoError(t, err)

	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: pt(6, 6)})
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Empty(t, f.store.List())
}

func TestPointerDownOnMissingPhotoStaysIdle(t *testing.T) {
	f := newFixture(t)
	f.send(t, Event{Type: PointerDown, PointerID: 1, PhotoID: "ghost", Handle: HandleDrag, Point: pt(0, 0)})
	assert.Equal(t, Idle, f.ctrl.State())
}

func TestUnknownHandleAndEventType(t *testing.T) {
	f := newFixture(t)
	p := f.addPhoto(t, 0)

	err := f.ctrl.Dispatch(context.Background(), Event{Type: PointerDown, PointerID: 1, PhotoID: p.ID, Handle: "tilt"})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, Idle, f.ctrl.State())

	err = f.ctrl.Dispatch(context.Background(), Event{Type: "wheel"})
	assert.Error(t, err)
}

func TestMovesWhileIdleAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.send(t, Event{Type: PointerMove, PointerID: 1, Point: pt(1, 1)})
	f.send(t, Event{Type: PointerUp, PointerID: 1, Point: pt(1, 1)})
	f.send(t, Event{Type: PointerCancel, PointerID: 1})
	assert.Equal(t, Idle, f.ctrl.State())
}

func TestResizeScaleAlwaysWithinBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	inputs := []float64{0, 1e-300, 1, 1e300, math.Inf(1), math.NaN()}
	for i := 0; i < 2000; i++ {
		inputs = append(inputs, r.Float64()*1000)
	}
	for _, startScale := range []float64{models.MinScale, 1, models.MaxScale} {
		for i := 0; i+1 < len(inputs); i++ {
			got := ResizeScale(startScale, inputs[i], inputs[i+1])
			require.False(t, math.IsNaN(got), "start=%v d0=%v d1=%v", startScale, inputs[i], inputs[i+1])
			require.GreaterOrEqual(t, got, models.MinScale)
			require.LessOrEqual(t, got, models.MaxScale)
		}
	}
}

func TestRotationDeltaSign(t *testing.T) {
	c := pt(0, 0)
	assert.InDelta(t, 90, RotationDelta(c, pt(1, 0), pt(0, 1)), 1e-9)
	assert.InDelta(t, -90, RotationDelta(c, pt(1, 0), pt(0, -1)), 1e-9)
	assert.InDelta(t, 0, RotationDelta(c, c, c), 1e-9)
}
