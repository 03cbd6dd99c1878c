package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"dmvault/internal/artifact"
)

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"catalog": a.svc.Catalog().Entries()})
}

func (a *API) handleListSoftware(w http.ResponseWriter, r *http.Request) {
	software, err := a.svc.ListSoftware(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if software == nil {
		software = []artifact.Software{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"software": software})
}

func (a *API) handleGetSoftware(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	software, err := a.svc.GetSoftware(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"software": software})
}

func (a *API) handleCreateSoftware(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}

	draft := artifact.SoftwareDraft{
		DeviceType:  strings.TrimSpace(r.FormValue("device_type")),
		DeviceModel: strings.TrimSpace(r.FormValue("device_model")),
		Version:     strings.TrimSpace(r.FormValue("version")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"a payload file is required"}})
		return
	}
	defer file.Close()

	up := artifact.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}

	id, err := a.svc.CreateSoftware(r.Context(), draft, up)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondFlash(w, r, http.StatusCreated, "software recorded", map[string]any{"id": id})
}
