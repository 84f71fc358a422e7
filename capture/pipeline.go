// Package capture turns one captured frame into a photo on the wall.
//
// A capture emits a started notification, probes orientation and prepares the
// caption frame concurrently, waits out the reveal delay, inserts the photo with
// its caption pending, emits a finished notification and hands the frame to
// the caption workers. A failed probe or encode aborts the capture without
// creating a photo; finished still fires.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/photowall/canvas"
	"github.com/camden-git/photowall/codec"
	"github.com/camden-git/photowall/metrics"
	"github.com/camden-git/photowall/models"
	"github.com/camden-git/photowall/workers"
)

// DefaultRevealDelay matches the print-ejection animation.
const DefaultRevealDelay = 2200 * time.Millisecond

var (
	ErrProbe  = errors.New("capture: orientation probe failed")
	ErrEncode = errors.New("capture: caption encoding failed")
)

// Placement jitter around the viewport center.
const (
	centerOffsetX = 150
	centerOffsetY = 200
	jitter        = 50
	maxTilt       = 3
)

type Prober interface {
	ProbeOrientation(data []byte) (models.Orientation, error)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(data []byte) (models.Orientation, error)

func (f ProbeFunc) ProbeOrientation(data []byte) (models.Orientation, error) { return f(data) }

type Encoder interface {
	EncodeForCaption(data []byte) ([]byte, error)
}

// Wall is where captured photos land.
type Wall interface {
	NextStackOrder() int64
	Insert(ctx context.Context, p models.Photo) error
}

type CaptionQueue interface {
	QueueJob(job workers.CaptionJob) bool
}

// Notifier receives the cosmetic processing notifications.
type Notifier interface {
	CaptureStarted(captureID string)
	CaptureFinished(captureID string, photo *models.Photo, err error)
}

type Recorder interface {
	RecordInserted(photoID, orientation string, startedAt, finishedAt time.Time) error
	RecordAborted(reason error, startedAt, finishedAt time.Time) error
}

type Options struct {
	RevealDelay time.Duration
	Notifier    Notifier
	Recorder    Recorder
	// Viewport is used for captures that do not report their own.
	Viewport codec.Viewport
	// Random returns values in [0,1) for placement jitter and tilt.
	Random func() float64
}

type Pipeline struct {
	prober   Prober
	encoder  Encoder
	wall     Wall
	captions CaptionQueue

	revealDelay time.Duration
	notifier    Notifier
	recorder    Recorder
	viewport    codec.Viewport
	random      func() float64
}

// Input is one capture request.
type Input struct {
	Data     []byte
	ImageRef string
	Style    models.Style
	Viewport codec.Viewport
}

func NewPipeline(prober Prober, encoder Encoder, wall Wall, captions CaptionQueue, opts Options) *Pipeline {
	if opts.RevealDelay <= 0 {
		opts.RevealDelay = DefaultRevealDelay
	}
	if opts.Random == nil {
		opts.Random = rand.Float64
	}
	return &Pipeline{
		prober:      prober,
		encoder:     encoder,
		wall:        wall,
		captions:    captions,
		revealDelay: opts.RevealDelay,
		notifier:    opts.Notifier,
		recorder:    opts.Recorder,
		viewport:    opts.Viewport,
		random:      opts.Random,
	}
}

type probeResult struct {
	orientation models.Orientation
	err         error
}

type encodeResult struct {
	frame []byte
	err   error
}

// Capture runs one capture to insertion and returns the inserted photo. The
// caption settles later in the background.
func (p *Pipeline) Capture(ctx context.Context, in Input) (models.Photo, error) {
	startedAt := time.Now()
	captureID := uuid.NewString()
	if p.notifier != nil {
		p.notifier.CaptureStarted(captureID)
	}

	photo, frame, err := p.develop(ctx, in)
	finishedAt := time.Now()
	if err != nil {
		log.Printf("capture: %s aborted after %s: %v", captureID, finishedAt.Sub(startedAt).Round(time.Millisecond), err)
		metrics.RecordCapture("aborted")
		if p.recorder != nil {
			if recErr := p.recorder.RecordAborted(err, startedAt, finishedAt); recErr != nil {
				log.Printf("capture: ERROR recording aborted capture: %v", recErr)
			}
		}
		if p.notifier != nil {
			p.notifier.CaptureFinished(captureID, nil, err)
		}
		return models.Photo{}, err
	}

	metrics.RecordCapture("inserted")
	if p.recorder != nil {
		if recErr := p.recorder.RecordInserted(photo.ID, string(photo.Orientation), startedAt, finishedAt); recErr != nil {
			log.Printf("capture: ERROR recording capture of %s: %v", photo.ID, recErr)
		}
	}
	if p.notifier != nil {
		p.notifier.CaptureFinished(captureID, &photo, nil)
	}
	log.Printf("capture: %s inserted %s (%s) after %s", captureID, photo.ID, photo.Orientation, finishedAt.Sub(startedAt).Round(time.Millisecond))

	p.captions.QueueJob(workers.CaptionJob{PhotoID: photo.ID, Frame: frame, QueuedAt: finishedAt})
	return photo, nil
}

// develop waits for the reveal delay and both background steps, then inserts.
func (p *Pipeline) develop(ctx context.Context, in Input) (models.Photo, []byte, error) {
	probed := make(chan probeResult, 1)
	encoded := make(chan encodeResult, 1)
	go func() {
		o, err := p.prober.ProbeOrientation(in.Data)
		probed <- probeResult{o, err}
	}()
	go func() {
		f, err := p.encoder.EncodeForCaption(in.Data)
		encoded <- encodeResult{f, err}
	}()

	reveal := time.NewTimer(p.revealDelay)
	defer reveal.Stop()

	var (
		orientation models.Orientation
		frame       []byte
		revealed    bool
		haveProbe   bool
		haveFrame   bool
	)
	for !(revealed && haveProbe && haveFrame) {
		select {
		case r := <-probed:
			if r.err != nil {
				return models.Photo{}, nil, fmt.Errorf("%w: %w", ErrProbe, r.err)
			}
			if !r.orientation.Valid() {
				return models.Photo{}, nil, fmt.Errorf("%w: unknown orientation %q", ErrProbe, r.orientation)
			}
			orientation, haveProbe = r.orientation, true
		case r := <-encoded:
			if r.err != nil {
				return models.Photo{}, nil, fmt.Errorf("%w: %w", ErrEncode, r.err)
			}
			frame, haveFrame = r.frame, true
		case <-reveal.C:
			revealed = true
		case <-ctx.Done():
			return models.Photo{}, nil, ctx.Err()
		}
	}

	photo, err := models.NewPhoto(models.NewPhotoParams{
		ImageRef:     in.ImageRef,
		Orientation:  orientation,
		RotationSeed: (p.random()*2 - 1) * maxTilt,
		Position:     p.placement(in.Viewport),
		StackOrder:   p.wall.NextStackOrder(),
		Style:        in.Style,
	})
	if err != nil {
		return models.Photo{}, nil, err
	}
	photo.Caption = models.PendingCaption

	if err := p.wall.Insert(ctx, photo); err != nil {
		// a failed write-through still leaves the photo on the wall
		if errors.Is(err, models.ErrInvalidPhoto) || errors.Is(err, canvas.ErrDuplicateID) {
			return models.Photo{}, nil, err
		}
		log.Printf("capture: ERROR persisting %s: %v", photo.ID, err)
	}
	return photo, frame, nil
}

// placement centers the card on the viewport with a small random offset.
func (p *Pipeline) placement(vp codec.Viewport) models.Point {
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = p.viewport
	}
	return models.Point{
		X: vp.Width/2 - centerOffsetX + (p.random()*2-1)*jitter,
		Y: vp.Height/2 - centerOffsetY + (p.random()*2-1)*jitter,
	}
}
