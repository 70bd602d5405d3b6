package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"

	"kes/config"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// GetConfigHandler returns the configuration in effect.
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := config.GetConfig()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

// SaveConfigHandler writes a new configuration file. Most settings apply at
// the next start.
func SaveConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			writeJSONError(w, "Requête invalide.", http.StatusBadRequest)
			return
		}

		if err := validateFolderPath(newCfg.TemplateDir); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := config.SaveConfig(newCfg); err != nil {
			log.Errorf("Error saving config: %v", err)
			writeJSONError(w, "L'enregistrement de la configuration a échoué : "+err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Configuration enregistrée."})
	}
}

func validateFolderPath(path string) error {
	if path == "" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("Dossier introuvable : " + path)
		}
		log.Warnf("Error checking folder path: %v", err)
		return errors.New("Vérification du dossier impossible.")
	}
	if !info.IsDir() {
		return errors.New("Le chemin n'est pas un dossier : " + path)
	}
	return nil
}
