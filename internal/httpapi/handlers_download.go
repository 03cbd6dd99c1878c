package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"dmvault/internal/artifact"
)

// handleDownload streams an artifact's payload. The service fetches it into a
// scoped temporary file which is removed on every exit path.
func (a *API) handleDownload(kind artifact.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}

		dl, err := a.svc.Download(r.Context(), kind, id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		defer func() {
			if err := dl.Cleanup(); err != nil {
				a.logger.Printf("WARN remove temp download file: %v", err)
			}
		}()

		f, err := os.Open(dl.Path)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("open downloaded file: %w", err))
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", dl.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
		w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, f); err != nil {
			// Headers are gone; the client sees a truncated body.
			a.logger.Printf("WARN stream %s payload %d: %v", kind, id, err)
		}
	}
}
