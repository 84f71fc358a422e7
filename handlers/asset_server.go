package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/photowall/media"
)

const assetCacheDuration = 24 * time.Hour

// AssetServer serves files of one storage subdirectory. It is mounted on a
// wildcard route; the wildcard is the path inside subDir.
//
//	r.Get("/originals/*", AssetServer(mediaStore, "originals"))
func AssetServer(store media.Store, subDir string) http.HandlerFunc {
	log.Printf("Serving assets for '/%s/*' from storage subdirectory %s", subDir, subDir)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := chi.URLParam(r, "*")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid asset path")
			return
		}

		rc, info, err := store.Get(path.Join(subDir, relativePath))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			log.Printf("Error opening asset %s/%s: %v", subDir, relativePath, err)
			WriteAPIError(w, http.StatusForbidden, CodeInvalidRequest, "Forbidden")
			return
		}
		defer rc.Close()

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(assetCacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(assetCacheDuration).Format(http.TimeFormat))

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
			return
		}
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("Error streaming asset %s/%s: %v", subDir, relativePath, err)
		}
	}
}
