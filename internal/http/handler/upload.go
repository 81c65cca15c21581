package handler

import (
	"io"
	"net/http"

	"pastel/internal/auth"
	"pastel/internal/storage"
)

type UploadHandler struct {
	Store *storage.S3Store
	Users *auth.Users
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, h.Users); !ok {
		return
	}
	if h.Store == nil {
		http.Error(w, "uploads not configured", http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseMultipartForm(storage.MaxFileSize); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No file provided"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if _, ok := storage.AllowedTypes[contentType]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid file type. Only JPEG, PNG, GIF, and WebP are allowed.",
		})
		return
	}
	if header.Size > storage.MaxFileSize {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "File too large. Maximum size is 5MB.",
		})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxFileSize+1))
	if err != nil || len(data) > storage.MaxFileSize {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "File too large. Maximum size is 5MB.",
		})
		return
	}

	url, err := h.Store.Put(r.Context(), data, contentType)
	if err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}
