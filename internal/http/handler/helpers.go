package handler

import (
	"encoding/json"
	"net/http"

	"pastel/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// currentUser resolves the request's account, creating it lazily for
// identities seen for the first time. Writes 401 and returns false when
// there is no identity.
func currentUser(w http.ResponseWriter, r *http.Request, users *auth.Users) (auth.User, bool) {
	sub, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return auth.User{}, false
	}
	u, err := users.FindOrCreate(r.Context(), sub)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return auth.User{}, false
	}
	return u, true
}
