package labels

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kes/apperr"
	"kes/database"
	"kes/labelimage"
	"kes/loader"
	"kes/model"
	"kes/storage"
)

type fixture struct {
	db      *sqlx.DB
	store   *storage.Store
	svc     *Service
	caseID  int64
	subCase *model.SubCase
	line    *model.ProductLine
}

func newFixture(t *testing.T, compositor *labelimage.Compositor) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(filepath.Join(t.TempDir(), "kes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(ctx, db))

	imageDir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 200))))
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "iec.png"), buf.Bytes(), 0o644))
	_, err = loader.SeedTemplates(ctx, db, "", imageDir)
	require.NoError(t, err)

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	f := &fixture{db: db, store: store}
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	c := &model.Case{Name: "CASE01", ClientName: "ACME Industrie", Site: "Usine Nord", InterventionEnd: "2026-03-01"}
	f.caseID, err = database.InsertCaseInTx(ctx, tx, c)
	require.NoError(t, err)
	f.subCase = &model.SubCase{CaseID: f.caseID}
	_, err = database.InsertSubCaseInTx(ctx, tx, f.subCase)
	require.NoError(t, err)
	f.line = &model.ProductLine{SubCaseID: f.subCase.ID, ProductName: "Inspection électrique", LabelCount: 3}
	_, err = database.InsertProductLine(ctx, tx, f.line)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	f.svc = NewService(db, compositor, store, Options{BaseURL: "http://erp.local/", RenderWorkers: 2})
	f.svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	return f
}

func TestGenerateForSubCase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, labelimage.NewCompositor(labelimage.FontSet{}))
	require.Equal(t, "CASE01/SA001", f.subCase.Name)

	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)
	require.Len(t, res.Labels, 3)

	ids := make([]int64, len(res.Labels))
	for i, l := range res.Labels {
		assert.Regexp(t, regexp.MustCompile(`^CASE01/SA001/ET0`+string(rune('1'+i))+`_[A-Z0-9]{4}$`), l.Code)
		assert.Equal(t, i+1, l.Number)
		require.NotNil(t, l.SubCaseID)
		assert.Equal(t, f.subCase.ID, *l.SubCaseID)
		ids[i] = l.ID
	}

	eq, err := database.GetEquipment(ctx, f.db, res.Labels[0].EquipmentID)
	require.NoError(t, err)
	assert.Equal(t, "Inspection électrique - CASE01/SA001", eq.Name)
	assert.Equal(t, "CASE01/IEL001", eq.Code)

	dl, err := f.svc.DownloadArchive(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, "CASE01_SA001.zip", dl.Name)
	assert.Equal(t, "/content/1?download=true", dl.URL)

	a, err := database.GetAttachment(ctx, f.db, dl.AttachmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AttachmentLabelArchive, a.ResModel)
	data, err := f.store.Get(ctx, a.StorageKey)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)
	for i, zf := range zr.File {
		assert.Equal(t, "etiquette_"+regexp.MustCompile(`/`).ReplaceAllString(res.Labels[i].Code, "_")+".png", zf.Name)
		rc, err := zf.Open()
		require.NoError(t, err)
		img, err := png.Decode(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Pt(400, 200), img.Bounds().Size())
	}
}

func TestGenerateForSubCase_RegenerateReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)
	second, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Count)
	assert.Equal(t, first.Labels[0].EquipmentID, second.Labels[0].EquipmentID)

	all, err := database.ListLabelDetailsBySubCase(ctx, f.db, f.subCase.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	_, err = database.GetLabelDetail(ctx, f.db, first.Labels[0].ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGenerateForSubCase_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tx, err := f.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	empty := &model.SubCase{CaseID: f.caseID}
	_, err = database.InsertSubCaseInTx(ctx, tx, empty)
	require.NoError(t, err)
	zero := &model.SubCase{CaseID: f.caseID}
	_, err = database.InsertSubCaseInTx(ctx, tx, zero)
	require.NoError(t, err)
	_, err = database.InsertProductLine(ctx, tx, &model.ProductLine{SubCaseID: zero.ID, ProductName: "Audit", LabelCount: 0})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = f.svc.GenerateForSubCase(ctx, empty.ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "Aucun produit configuré pour la génération d'étiquettes.", apperr.Message(err))

	_, err = f.svc.GenerateForSubCase(ctx, zero.ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "Aucune étiquette générée. Vérifiez les quantités configurées.", apperr.Message(err))

	_, err = f.svc.GenerateForSubCase(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGenerateForEquipment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tx, err := f.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	e := &model.Equipment{CaseID: f.caseID, Name: "TGBT", LabelCount: 2}
	_, err = database.InsertEquipmentInTx(ctx, tx, e)
	require.NoError(t, err)
	none := &model.Equipment{CaseID: f.caseID, Name: "Armoire", LabelCount: 0}
	_, err = database.InsertEquipmentInTx(ctx, tx, none)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	res, err := f.svc.GenerateForEquipment(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, res.Labels, 2)
	assert.Regexp(t, `^CASE01/IEL001/ET02_[A-Z0-9]{4}$`, res.Labels[1].Code)
	assert.Nil(t, res.Labels[0].SubCaseID)

	_, err = f.svc.GenerateForEquipment(ctx, none.ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// only equipment without labels and a positive count remains
	_, err = f.svc.GenerateForCase(ctx, f.caseID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestGenerateForCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tx, err := f.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	for _, e := range []*model.Equipment{
		{CaseID: f.caseID, Name: "TGBT", LabelCount: 2},
		{CaseID: f.caseID, Name: "Armoire", LabelCount: 0},
	} {
		_, err = database.InsertEquipmentInTx(ctx, tx, e)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	res, err := f.svc.GenerateForCase(ctx, f.caseID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "2 étiquette(s) générée(s) pour 1 équipement(s)", res.Message)
}

func TestDownloadArchive_RepeatedIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, labelimage.NewCompositor(labelimage.FontSet{}))

	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)
	id := res.Labels[0].ID

	dl, err := f.svc.DownloadArchive(ctx, []int64{id, id})
	require.NoError(t, err)
	a, err := database.GetAttachment(ctx, f.db, dl.AttachmentID)
	require.NoError(t, err)
	data, err := f.store.Get(ctx, a.StorageKey)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "etiquette_"+regexp.MustCompile(`/`).ReplaceAllString(res.Labels[0].Code, "_")+".png", zr.File[0].Name)
}

func TestRenderLabel_Unavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)

	_, err = f.svc.RenderLabel(ctx, res.Labels[0].ID)
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))

	_, err = f.svc.DownloadArchive(ctx, []int64{res.Labels[0].ID})
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))
	assert.Contains(t, apperr.Message(err), res.Labels[0].Code)
}

func TestRenderLabel_MissingTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, labelimage.NewCompositor(labelimage.FontSet{}))
	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE label_templates SET active = 0 WHERE template_key = 'label_template_iec'`)
	require.NoError(t, err)

	_, err = f.svc.RenderLabel(ctx, res.Labels[0].ID)
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
	assert.Equal(t, "Aucun modèle d'étiquette associé.", apperr.Message(err))
}

func TestRenderLabel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, labelimage.NewCompositor(labelimage.FontSet{}))
	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)

	data, err := f.svc.RenderLabel(ctx, res.Labels[0].ID)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(400, 200), img.Bounds().Size())
}

func TestScanAndQRCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	res, err := f.svc.GenerateForSubCase(ctx, f.subCase.ID)
	require.NoError(t, err)
	code := res.Labels[1].Code

	d, err := f.svc.Lookup(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "http://erp.local/inspection/etiquette/"+code, d.URL)
	assert.Equal(t, "ACME Industrie", d.ClientName)

	scanned, err := f.svc.Scan(ctx, QRPayload(d))
	require.NoError(t, err)
	assert.Equal(t, res.Labels[1].ID, scanned.ID)

	scanned, err = f.svc.Scan(ctx, d.URL)
	require.NoError(t, err)
	assert.Equal(t, code, scanned.Code)

	_, err = f.svc.Scan(ctx, "bonjour")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	dl, err := f.svc.DownloadQRCode(ctx, res.Labels[1].ID)
	require.NoError(t, err)
	assert.Regexp(t, `^QRCode_CASE01_SA001_ET02_[A-Z0-9]{4}\.png$`, dl.Name)
}

func TestDisplayFields(t *testing.T) {
	d := &model.LabelDetail{Label: model.Label{Code: "X/ET01_AAAA", Number: 4}}
	got := DisplayFields(d)
	assert.Equal(t, labelimage.Display{Code: "X/ET01_AAAA", Client: "Client", Site: "Lieu", Sequence: 4}, got)
	assert.Equal(t, "X/ET01_AAAA\nClient: Client non défini\nProduit: N/A", QRPayload(d))

	d.Site, d.ClientName = "Usine", "ACME"
	assert.Equal(t, "Usine", DisplayFields(d).Site)
	d.Location = "Bât. B"
	assert.Equal(t, "Bât. B", DisplayFields(d).Site)
}
