package media

import (
	"bytes"
	"fmt"
	"log"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	DefaultCaptionMaxEdge = 1024
	CaptionJpegQuality    = 85

	OriginalFileExtension = ".jpg"
)

// Processor handles the two transformations a capture needs: keeping the
// original frame and preparing a small copy for the caption model. It relies on
// a Store implementation for saving originals.
type Processor struct {
	store   Store
	maxEdge int
}

func NewProcessor(store Store, captionMaxEdge int) *Processor {
	if captionMaxEdge <= 0 {
		captionMaxEdge = DefaultCaptionMaxEdge
	}
	return &Processor{store: store, maxEdge: captionMaxEdge}
}

// SaveOriginal stores the captured frame under a fresh name and returns its
// relative path, which becomes the photo's image reference.
func (p *Processor) SaveOriginal(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = OriginalFileExtension
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for original: %w", err)
	}
	rel, err := p.store.Save(AssetTypeOriginal, id.String()+ext, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to save original via store: %w", err)
	}
	return rel, nil
}

// EncodeForCaption decodes the frame, applies its EXIF orientation, fits it
// within the caption edge limit and returns JPEG bytes.
func (p *Processor) EncodeForCaption(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	b := img.Bounds()
	if b.Dx() > p.maxEdge || b.Dy() > p.maxEdge {
		img = imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(CaptionJpegQuality)); err != nil {
		log.Printf("processor: Failed to encode caption frame: %v", err)
		return nil, fmt.Errorf("failed to encode caption frame: %w", err)
	}
	return buf.Bytes(), nil
}

// RemoveOriginal deletes a stored original. Missing files are not an error.
func (p *Processor) RemoveOriginal(rel string) error {
	if rel == "" {
		return nil
	}
	return p.store.Delete(rel)
}

