package labels

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"

	"kes/apperr"
	"kes/database"
	"kes/labelcode"
	"kes/labelimage"
	"kes/labelzip"
	"kes/logger"
	"kes/metrics"
	"kes/model"
)

// templateFor resolves the active template of an equipment type.
func (s *Service) templateFor(ctx context.Context, equipmentType string) (*labelimage.Template, error) {
	key := labelcode.TemplateKeyFor(equipmentType)
	if key == "" {
		return nil, apperr.Configuration("Aucun modèle d'étiquette associé.")
	}
	t, err := database.GetTemplateByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.Active {
		return nil, apperr.Configuration("Aucun modèle d'étiquette associé.")
	}
	return &labelimage.Template{
		Key:   fmt.Sprintf("%s:%d", t.Key, t.Revision),
		Name:  t.Name,
		Image: t.Image,
		Layout: labelimage.Layout{
			QRX: t.QRX, QRY: t.QRY, QRSize: t.QRSize,
			TextX: t.TextX, TextY: t.TextY,
			CodeX: t.CodeX, CodeY: t.CodeY,
			FontSize:  t.FontSize,
			FontColor: t.FontColor,
			Bold:      t.Bold,
		},
	}, nil
}

// QRPayload is the text encoded in the QR code of a label.
func QRPayload(d *model.LabelDetail) string {
	client := d.ClientName
	if client == "" {
		client = defaultQRClient
	}
	product := d.ProductName
	if product == "" {
		product = defaultQRProduct
	}
	return labelcode.Payload(d.Code, client, product)
}

// DisplayFields are the texts printed next to the QR code.
func DisplayFields(d *model.LabelDetail) labelimage.Display {
	out := labelimage.Display{Code: d.Code, Client: d.ClientName, Site: d.Location, Sequence: d.Number}
	if out.Client == "" {
		out.Client = defaultClient
	}
	if out.Site == "" {
		out.Site = d.Site
	}
	if out.Site == "" {
		out.Site = defaultSite
	}
	return out
}

func (s *Service) render(tpl *labelimage.Template, d *model.LabelDetail) (image.Image, error) {
	if s.compositor == nil {
		return nil, apperr.Unavailable("La génération d'images d'étiquettes n'est pas disponible")
	}
	defer metrics.ObserveRender(time.Now())
	return s.compositor.Render(*tpl, QRPayload(d), DisplayFields(d))
}

// RenderLabel returns the PNG image of one label.
func (s *Service) RenderLabel(ctx context.Context, id int64) ([]byte, error) {
	d, err := database.GetLabelDetail(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templateFor(ctx, d.EquipmentType)
	if err != nil {
		metrics.RecordFailure(err)
		return nil, err
	}
	img, err := s.render(tpl, d)
	if err != nil {
		metrics.RecordFailure(err)
		logger.LoggerForLabel(d.Code).Errorf("render failed: %v", err)
		return nil, err
	}
	return labelimage.EncodePNG(img)
}

// DownloadArchive packs the selected labels into a zip stored as an attachment.
func (s *Service) DownloadArchive(ctx context.Context, ids []int64) (*Download, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("Aucune étiquette sélectionnée.")
	}
	details, err := database.ListLabelDetails(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, details, nil)
}

// DownloadSubCaseArchive packs every label of a sub-case.
func (s *Service) DownloadSubCaseArchive(ctx context.Context, subCaseID int64) (*Download, error) {
	sc, err := database.GetSubCase(ctx, s.db, subCaseID)
	if err != nil {
		return nil, err
	}
	details, err := database.ListLabelDetailsBySubCase(ctx, s.db, subCaseID)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, apperr.Validation("Aucune étiquette générée pour %s.", sc.Name)
	}
	return s.archive(ctx, details, &sc.ID)
}

func (s *Service) archive(ctx context.Context, details []model.LabelDetail, owner *int64) (*Download, error) {
	templates := map[string]*labelimage.Template{}
	items := make([]labelzip.Item, len(details))
	scopes := make([]string, len(details))
	for i := range details {
		d := &details[i]
		tpl, ok := templates[d.EquipmentType]
		if !ok {
			var err error
			if tpl, err = s.templateFor(ctx, d.EquipmentType); err != nil {
				err = apperr.Wrap(apperr.ErrConfiguration, err, "Erreur avec l'étiquette %s : %s", d.Code, apperr.Message(err))
				metrics.RecordFailure(err)
				return nil, err
			}
			templates[d.EquipmentType] = tpl
		}
		scopes[i] = d.SubCaseName
		items[i] = labelzip.Item{
			Code:   d.Code,
			Scope:  d.SubCaseName,
			Render: func() (image.Image, error) { return s.render(tpl, d) },
		}
	}

	data, err := s.packager.Pack(items)
	if err != nil {
		metrics.RecordFailure(err)
		return nil, err
	}
	metrics.ArchiveSize.Observe(float64(len(data)))

	name := labelzip.ArchiveName(scopes, s.clock())
	return s.store(ctx, name, labelzip.MimeType, model.AttachmentLabelArchive, owner, data)
}

// DownloadQRCode stores the bare QR code of a label's public URL.
func (s *Service) DownloadQRCode(ctx context.Context, id int64) (*Download, error) {
	d, err := database.GetLabelDetail(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	data, err := labelimage.QRCodePNG(labelcode.URL(s.baseURL, d.Code))
	if err != nil {
		return nil, err
	}
	name := "QRCode_" + filenameSeparators.Replace(d.Code) + ".png"
	return s.store(ctx, name, "image/png", model.AttachmentLabelQRCode, &d.ID, data)
}

func (s *Service) store(ctx context.Context, name, mime, resModel string, owner *int64, data []byte) (*Download, error) {
	if s.blobs == nil {
		return nil, apperr.Unavailable("Le stockage des fichiers n'est pas configuré")
	}
	key, err := s.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	a := &model.Attachment{
		Name:       name,
		MimeType:   mime,
		StorageKey: key,
		ResModel:   resModel,
		ResID:      owner,
		Size:       int64(len(data)),
	}
	id, err := database.InsertAttachment(ctx, s.db, a)
	if err != nil {
		return nil, err
	}
	log.Infof("labels: stored %s (%d bytes) as attachment %d", name, len(data), id)
	return &Download{AttachmentID: id, Name: name, URL: fmt.Sprintf(downloadURLFormat, id)}, nil
}

// Lookup returns a label by code, with its public URL.
func (s *Service) Lookup(ctx context.Context, code string) (*model.LabelDetail, error) {
	d, err := database.GetLabelDetailByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	d.URL = labelcode.URL(s.baseURL, d.Code)
	return d, nil
}

// Scan resolves scanned QR text to its label.
func (s *Service) Scan(ctx context.Context, payload string) (*model.LabelDetail, error) {
	parsed, err := labelcode.ParsePayload(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err, "QR code non reconnu")
	}
	return s.Lookup(ctx, parsed.Code)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
