package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/camden-git/photowall/models"
)

// squareTolerance is how far apart width and height may be, as a ratio, for a
// frame to still count as square.
const squareTolerance = 1.1

// Classify maps displayed dimensions to an orientation class.
func Classify(width, height int) models.Orientation {
	w, h := float64(width), float64(height)
	switch {
	case w > h*squareTolerance:
		return models.OrientationLandscape
	case h > w*squareTolerance:
		return models.OrientationPortrait
	}
	return models.OrientationSquare
}

// Probe reads the frame header and EXIF block without decoding pixels.
func Probe(data []byte) (FrameInfo, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return FrameInfo{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return FrameInfo{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnreadableImage, cfg.Width, cfg.Height)
	}

	info := FrameInfo{Width: cfg.Width, Height: cfg.Height}

	// PNG and GIF frames from a canvas carry no EXIF, which is fine
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return info, nil
	}
	if tag, err := x.Get(exif.Orientation); err == nil && tag != nil {
		if v, err := tag.Int(0); err == nil {
			info.ExifOrientation = v
		}
	}
	// orientations 5-8 are rotated a quarter turn
	if info.ExifOrientation >= 5 && info.ExifOrientation <= 8 {
		info.Width, info.Height = info.Height, info.Width
	}
	return info, nil
}

// ProbeOrientation classifies a captured frame.
func ProbeOrientation(data []byte) (models.Orientation, error) {
	info, err := Probe(data)
	if err != nil {
		return "", err
	}
	return Classify(info.Width, info.Height), nil
}
