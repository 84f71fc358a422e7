// media/types.go
package media

import "errors"

type AssetType string

const (
	AssetTypeOriginal AssetType = "original"
)

// ErrUnreadableImage is returned when a frame cannot be decoded.
var ErrUnreadableImage = errors.New("media: unreadable image")

// FrameInfo is what the probe learns about a captured frame.
// Width and Height are as displayed, after applying the EXIF orientation.
type FrameInfo struct {
	Width           int `json:"width"`
	Height          int `json:"height"`
	ExifOrientation int `json:"exif_orientation,omitempty"`
}
