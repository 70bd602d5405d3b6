package loader

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// ReseedTemplatesHandler installs seed templates that are not in the database yet.
func ReseedTemplatesHandler(db *sqlx.DB, seedPath, imageDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("reseeding label templates")
		added, err := SeedTemplates(r.Context(), db, seedPath, imageDir)
		if err != nil {
			log.Errorf("template reseed failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "La réinstallation des modèles a échoué."})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": fmt.Sprintf("%d modèle(s) d'étiquette installé(s).", added),
			"added":   added,
		})
	}
}
