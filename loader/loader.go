package loader

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"kes/database"
	"kes/labelimage"
	"kes/model"
)

//go:embed schema.sql
var schemaSQL string

//go:embed templates.yaml
var defaultTemplates []byte

type seedFile struct {
	Templates []seedTemplate `yaml:"templates"`
}

type seedTemplate struct {
	Key           string             `yaml:"key"`
	Name          string             `yaml:"name"`
	Sequence      int                `yaml:"sequence"`
	EquipmentType string             `yaml:"equipment_type"`
	Image         string             `yaml:"image"`
	Layout        *labelimage.Layout `yaml:"layout"`
}

// InitDatabase applies the schema and aligns the code sequences with the stored data.
func InitDatabase(ctx context.Context, db *sqlx.DB) error {
	log.Info("applying database schema")
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for sequence initialization: %w", err)
	}
	defer tx.Rollback()

	if err := database.InitializeSequenceFromMaxCaseName(ctx, tx); err != nil {
		log.Warnf("failed to initialize CASE sequence: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sequence initialization: %w", err)
	}
	return nil
}

// SeedTemplates installs the label templates listed in seedPath, or the
// built-in list when seedPath is empty. Images are read from imageDir; a
// missing image leaves the template without one. It returns how many
// templates were added.
func SeedTemplates(ctx context.Context, db *sqlx.DB, seedPath, imageDir string) (int, error) {
	raw := defaultTemplates
	if seedPath != "" {
		b, err := os.ReadFile(seedPath)
		if err != nil {
			return 0, fmt.Errorf("read template seed %s: %w", seedPath, err)
		}
		raw = b
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse template seed: %w", err)
	}

	added := 0
	for _, st := range seed.Templates {
		layout := labelimage.DefaultLayout()
		if st.Layout != nil {
			layout = *st.Layout
		}
		if err := layout.Validate(); err != nil {
			log.Warnf("template %s: invalid layout, skipping: %v", st.Key, err)
			continue
		}
		tpl := &model.LabelTemplate{
			Key: st.Key, Name: st.Name, Sequence: st.Sequence, EquipmentType: st.EquipmentType,
			QRX: layout.QRX, QRY: layout.QRY, QRSize: layout.QRSize,
			TextX: layout.TextX, TextY: layout.TextY, CodeX: layout.CodeX, CodeY: layout.CodeY,
			FontSize: layout.FontSize, FontColor: layout.FontColor, Bold: layout.Bold,
			Active: true,
		}
		if st.Image != "" {
			img, err := os.ReadFile(filepath.Join(imageDir, st.Image))
			switch {
			case err == nil:
				tpl.Image = img
			case errors.Is(err, os.ErrNotExist):
				log.Infof("template %s: image %s not found, installed without image", st.Key, st.Image)
			default:
				log.Warnf("template %s: cannot read image %s: %v", st.Key, st.Image, err)
			}
		}

		ok, err := database.InsertTemplateIfMissing(ctx, db, tpl)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	log.Infof("label templates: %d added, %d listed", added, len(seed.Templates))
	return added, nil
}
