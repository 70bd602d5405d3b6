package respond

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/logger"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("encode response: %v", err)
	}
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// Error maps err to its status and writes its user message. Unexpected
// errors are logged and hidden behind a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	entry := logger.LoggerForRequest(middleware.GetReqID(r.Context()))
	if status == http.StatusInternalServerError {
		entry.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		Message(w, status, "Erreur interne du serveur.")
		return
	}
	entry.Warnf("%s %s: %v", r.Method, r.URL.Path, err)
	Message(w, status, apperr.Message(err))
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err, "Requête invalide.")
	}
	return nil
}

// ID parses the named path parameter as a record id.
func ID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Identifiant invalide : %q", raw)
	}
	return id, nil
}
