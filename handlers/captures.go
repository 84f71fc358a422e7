package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/camden-git/photowall/capture"
	"github.com/camden-git/photowall/codec"
	"github.com/camden-git/photowall/database"
	"github.com/camden-git/photowall/models"
)

const (
	defaultCaptureListLimit = 50
	maxCaptureListLimit     = 500
)

var originalExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// Capturer runs the capture pipeline.
type Capturer interface {
	Capture(ctx context.Context, in capture.Input) (models.Photo, error)
}

// OriginalStore keeps the uploaded frame.
type OriginalStore interface {
	SaveOriginal(data []byte, ext string) (string, error)
	RemoveOriginal(rel string) error
}

type CaptureHandler struct {
	Pipeline       Capturer
	Originals      OriginalStore
	Log            *database.CaptureLog
	MaxUploadBytes int64
}

// CreateCapture accepts one frame from the capture surface and blocks until
// the photo is on the wall. The caption is still pending in the response.
func (ch *CaptureHandler) CreateCapture(w http.ResponseWriter, r *http.Request) {
	if ch.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ch.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "Image is too large")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing 'image' file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Failed to read image: "+err.Error())
		return
	}
	if len(data) == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Image is empty")
		return
	}

	style := models.Style(r.FormValue("style"))
	if style != "" && !style.Valid() {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Unknown style '"+string(style)+"'")
		return
	}
	viewport, err := parseViewport(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !originalExtensions[ext] {
		ext = ""
	}
	ref, err := ch.Originals.SaveOriginal(data, ext)
	if err != nil {
		log.Printf("CaptureHandler: ERROR saving original: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeStorageFailed, "Failed to store image")
		return
	}

	// the capture completes even if the client goes away
	photo, err := ch.Pipeline.Capture(context.WithoutCancel(r.Context()), capture.Input{
		Data:     data,
		ImageRef: ref,
		Style:    style,
		Viewport: viewport,
	})
	if err != nil {
		if rmErr := ch.Originals.RemoveOriginal(ref); rmErr != nil {
			log.Printf("CaptureHandler: ERROR removing original of aborted capture: %v", rmErr)
		}
		WriteAPIError(w, http.StatusUnprocessableEntity, CodeCaptureAborted, "Could not develop this photo")
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

// ListCaptures returns the most recent capture log entries, newest first.
func (ch *CaptureHandler) ListCaptures(w http.ResponseWriter, r *http.Request) {
	limit := uint64(defaultCaptureListLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid limit")
			return
		}
		limit = min(n, maxCaptureListLimit)
	}

	captures, err := ch.Log.ListRecent(limit)
	if err != nil {
		log.Printf("CaptureHandler: ERROR listing captures: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, captures)
}

func parseViewport(r *http.Request) (codec.Viewport, error) {
	var vp codec.Viewport
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"viewport_width", &vp.Width}, {"viewport_height", &vp.Height}} {
		s := r.FormValue(f.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > 100000 {
			return codec.Viewport{}, errors.New("invalid " + f.name)
		}
		*f.dst = v
	}
	return vp, nil
}
