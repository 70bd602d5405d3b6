package labels

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/labelcode"
	"kes/labelimage"
	"kes/labelzip"
	"kes/metrics"
	"kes/model"
)

const (
	defaultClient     = "Client"
	defaultSite       = "Lieu"
	defaultQRClient   = "Client non défini"
	defaultQRProduct  = "N/A"
	downloadURLFormat = "/content/%d?download=true"
)

var filenameSeparators = strings.NewReplacer("/", "_", "\\", "_")

// Blobs stores attachment content.
type Blobs interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// Service generates, renders and packages labels.
type Service struct {
	db         *sqlx.DB
	compositor *labelimage.Compositor
	packager   *labelzip.Packager
	blobs      Blobs
	baseURL    string
	random     io.Reader
	now        func() time.Time
}

type Options struct {
	BaseURL       string
	RenderWorkers int
}

// NewService wires the label operations. A nil compositor leaves generation
// working while every render reports the capability as unavailable.
func NewService(db *sqlx.DB, compositor *labelimage.Compositor, blobs Blobs, opts Options) *Service {
	return &Service{
		db:         db,
		compositor: compositor,
		packager:   labelzip.NewPackager(opts.RenderWorkers),
		blobs:      blobs,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		now:        time.Now,
	}
}

// Result is the outcome of a generation request.
type Result struct {
	Count   int           `json:"count"`
	Message string        `json:"message"`
	Labels  []model.Label `json:"labels"`
}

// Download points at a stored attachment.
type Download struct {
	AttachmentID int64  `json:"attachmentId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
}

func (s *Service) allocator(q sqlx.QueryerContext) *labelcode.Allocator {
	a := labelcode.NewAllocator(database.NewLabelRegistry(q))
	if s.random != nil {
		a = a.WithRandom(s.random)
	}
	return a
}

// generateInTx allocates count codes under scope and stores them as labels
// shaped like base, numbered from 1.
func (s *Service) generateInTx(ctx context.Context, tx *sqlx.Tx, scope string, count int, base model.Label) ([]model.Label, error) {
	codes, err := s.allocator(tx).Allocate(ctx, scope, count)
	if err != nil {
		return nil, err
	}
	out := make([]model.Label, len(codes))
	for i, code := range codes {
		l := base
		l.Code = code
		l.Number = i + 1
		out[i] = l
	}
	if err := database.InsertLabelsInTx(ctx, tx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateForEquipment replaces the equipment's labels with label_count new
// ones coded under the equipment code.
func (s *Service) GenerateForEquipment(ctx context.Context, equipmentID int64) (*Result, error) {
	res, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Result, error) {
		e, err := database.GetEquipment(ctx, tx, equipmentID)
		if err != nil {
			return nil, err
		}
		labels, err := s.generateForEquipmentInTx(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		return &Result{
			Count:   len(labels),
			Message: fmt.Sprintf("%d étiquette(s) générée(s) pour %s", len(labels), e.Name),
			Labels:  labels,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LabelsGenerated.WithLabelValues("equipment").Add(float64(res.Count))
	return res, nil
}

func (s *Service) generateForEquipmentInTx(ctx context.Context, tx *sqlx.Tx, e *model.Equipment) ([]model.Label, error) {
	if e.LabelCount <= 0 {
		return nil, apperr.Validation("Le nombre d'étiquettes doit être supérieur à 0")
	}
	if err := database.DeleteLabelsByEquipmentInTx(ctx, tx, e.ID); err != nil {
		return nil, err
	}
	return s.generateInTx(ctx, tx, e.Code, e.LabelCount, model.Label{EquipmentID: e.ID})
}

// GenerateForProductLine replaces the line's labels. It creates an equipment
// record typed from the product name and codes the labels under the sub-case.
func (s *Service) GenerateForProductLine(ctx context.Context, lineID int64) (*Result, error) {
	res, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Result, error) {
		pl, err := database.GetProductLine(ctx, tx, lineID)
		if err != nil {
			return nil, err
		}
		labels, err := s.generateForLineInTx(ctx, tx, pl)
		if err != nil {
			return nil, err
		}
		return &Result{
			Count:   len(labels),
			Message: fmt.Sprintf("%d étiquette(s) générée(s) pour %s", len(labels), pl.ProductName),
			Labels:  labels,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LabelsGenerated.WithLabelValues("product_line").Add(float64(res.Count))
	return res, nil
}

func (s *Service) generateForLineInTx(ctx context.Context, tx *sqlx.Tx, pl *model.ProductLine) ([]model.Label, error) {
	if pl.LabelCount <= 0 {
		return nil, apperr.Validation("Le nombre d'étiquettes doit être supérieur à 0")
	}
	sc, err := database.GetSubCase(ctx, tx, pl.SubCaseID)
	if err != nil {
		return nil, err
	}
	equipmentID, err := database.ProductLineEquipmentInTx(ctx, tx, pl.ID)
	if err != nil {
		return nil, err
	}
	if err := database.DeleteLabelsByProductLineInTx(ctx, tx, pl.ID); err != nil {
		return nil, err
	}

	// regenerating keeps the equipment created the first time
	if equipmentID == 0 {
		e := &model.Equipment{
			CaseID:     sc.CaseID,
			Name:       fmt.Sprintf("%s - %s", pl.ProductName, sc.Name),
			Type:       labelcode.TypeFromProductName(pl.ProductName),
			LabelCount: pl.LabelCount,
		}
		if equipmentID, err = database.InsertEquipmentInTx(ctx, tx, e); err != nil {
			return nil, err
		}
	}
	subCaseID, lineID := sc.ID, pl.ID
	return s.generateInTx(ctx, tx, sc.Name, pl.LabelCount, model.Label{
		EquipmentID:   equipmentID,
		SubCaseID:     &subCaseID,
		ProductLineID: &lineID,
	})
}

// GenerateForSubCase runs every product line of the sub-case that asks for labels.
func (s *Service) GenerateForSubCase(ctx context.Context, subCaseID int64) (*Result, error) {
	res, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Result, error) {
		if _, err := database.GetSubCase(ctx, tx, subCaseID); err != nil {
			return nil, err
		}
		lines, err := database.ListProductLines(ctx, tx, subCaseID)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return nil, apperr.Validation("Aucun produit configuré pour la génération d'étiquettes.")
		}
		var all []model.Label
		for i := range lines {
			if lines[i].LabelCount <= 0 {
				continue
			}
			labels, err := s.generateForLineInTx(ctx, tx, &lines[i])
			if err != nil {
				return nil, fmt.Errorf("génération pour %s : %w", lines[i].ProductName, err)
			}
			all = append(all, labels...)
		}
		if len(all) == 0 {
			return nil, apperr.Validation("Aucune étiquette générée. Vérifiez les quantités configurées.")
		}
		return &Result{
			Count:   len(all),
			Message: fmt.Sprintf("%d étiquette(s) générée(s) avec succès", len(all)),
			Labels:  all,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LabelsGenerated.WithLabelValues("product_line").Add(float64(res.Count))
	return res, nil
}

// GenerateForCase labels every equipment item of the case that has none yet.
func (s *Service) GenerateForCase(ctx context.Context, caseID int64) (*Result, error) {
	res, err := s.inTx(ctx, func(tx *sqlx.Tx) (*Result, error) {
		if _, err := database.GetCase(ctx, tx, caseID); err != nil {
			return nil, err
		}
		pending, err := database.ListEquipmentWithoutLabels(ctx, tx, caseID)
		if err != nil {
			return nil, err
		}
		var all []model.Label
		labelled := 0
		for i := range pending {
			if pending[i].LabelCount <= 0 {
				continue
			}
			labels, err := s.generateForEquipmentInTx(ctx, tx, &pending[i])
			if err != nil {
				return nil, fmt.Errorf("génération pour %s : %w", pending[i].Name, err)
			}
			all = append(all, labels...)
			labelled++
		}
		if len(all) == 0 {
			return nil, apperr.Validation("Aucun équipement sans étiquettes à générer.")
		}
		return &Result{
			Count:   len(all),
			Message: fmt.Sprintf("%d étiquette(s) générée(s) pour %d équipement(s)", len(all), labelled),
			Labels:  all,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LabelsGenerated.WithLabelValues("equipment").Add(float64(res.Count))
	return res, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sqlx.Tx) (*Result, error)) (*Result, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := fn(tx)
	if err != nil {
		metrics.RecordFailure(err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.ErrGenerationExhausted, err, "Conflit de code étiquette, réessayez")
		}
		return nil, fmt.Errorf("commit labels: %w", err)
	}
	log.Infof("labels: %s", res.Message)
	return res, nil
}
