package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/users"
)

type uniqueResponse struct {
	IsUnique bool `json:"isUnique"`
}

// UniqueCheckHandler answers GET /api/users/unique?email=… or ?username=…
func (s *Server) UniqueCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var field users.Field
		var value string
		switch {
		case q.Get("email") != "":
			field, value = users.FieldEmail, q.Get("email")
		case q.Get("username") != "":
			field, value = users.FieldUsername, q.Get("username")
		default:
			writeJSONError(w, http.StatusBadRequest, "email or username query parameter is required")
			return
		}
		s.writeUniqueness(w, r, field, value)
	}
}

// ValidateFieldHandler answers POST /api/validate/{field} with a JSON body
// carrying that field as a string.
func (s *Server) ValidateFieldHandler(field users.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		value, ok := body[string(field)].(string)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, string(field)+" must be a string")
			return
		}
		s.writeUniqueness(w, r, field, value)
	}
}

func (s *Server) writeUniqueness(w http.ResponseWriter, r *http.Request, field users.Field, value string) {
	unique, err := s.uniqueness.IsUnique(r.Context(), field, value)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID(r)).Str("field", string(field)).Msg("uniqueness check failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, uniqueResponse{IsUnique: unique})
}
