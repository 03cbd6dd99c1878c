package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"dmvault/internal/artifact"
)

const dateLayout = "2006-01-02"

func (a *API) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := a.svc.ListBackups(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if backups == nil {
		backups = []artifact.Backup{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

func (a *API) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	backup, err := a.svc.GetBackup(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"backup": backup})
}

func (a *API) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}

	draft := artifact.BackupDraft{
		Equipment:    strings.TrimSpace(r.FormValue("equipment")),
		Designation:  strings.TrimSpace(r.FormValue("designation")),
		SerialNumber: strings.TrimSpace(r.FormValue("serial_number")),
		Client:       strings.TrimSpace(r.FormValue("client")),
		Supplier:     strings.TrimSpace(r.FormValue("supplier")),
		Comment:      strings.TrimSpace(r.FormValue("comment")),
		Status:       strings.TrimSpace(r.FormValue("status")),
	}

	var problems []string
	if raw := strings.TrimSpace(r.FormValue("backup_date")); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			problems = append(problems, "backup date must use the YYYY-MM-DD format")
		} else {
			draft.BackupDate = date
		}
	}
	if raw := strings.TrimSpace(r.FormValue("file_date")); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			problems = append(problems, "file date must use the YYYY-MM-DD format")
		} else {
			draft.FileDate = &date
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		problems = append(problems, "a payload file is required")
	} else {
		defer file.Close()
	}
	if len(problems) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": problems})
		return
	}

	up := artifact.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}

	id, err := a.svc.CreateBackup(r.Context(), draft, up)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondFlash(w, r, http.StatusCreated, "backup recorded", map[string]any{"id": id})
}

func (a *API) handleDelete(kind artifact.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}

		res, err := a.svc.Delete(r.Context(), kind, id)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		flash := fmt.Sprintf("%s deleted", kind)
		if res.FileRemovalFailed {
			flash = fmt.Sprintf("%s deleted, but the file may remain on the remote store", kind)
		}
		respondFlash(w, r, http.StatusOK, flash, map[string]any{
			"deleted":             true,
			"file_removal_failed": res.FileRemovalFailed,
		})
	}
}
