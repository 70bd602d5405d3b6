package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kes/apperr"
	"kes/database"
	"kes/loader"
	"kes/model"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "kes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(context.Background(), db))
	return db
}

func inTx(t *testing.T, db *sqlx.DB, fn func(tx *sqlx.Tx)) {
	t.Helper()
	tx, err := db.Beginx()
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestCaseNumbering(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	var first, second, named model.Case
	inTx(t, db, func(tx *sqlx.Tx) {
		first = model.Case{ClientName: "ACME", InterventionEnd: "2025-01-15", AlertPeriod: model.AlertSixMonths}
		_, err := database.InsertCaseInTx(ctx, tx, &first)
		require.NoError(t, err)
		second = model.Case{ClientName: "ACME", OrderRef: "S00042"}
		_, err = database.InsertCaseInTx(ctx, tx, &second)
		require.NoError(t, err)
		named = model.Case{Name: "CASE01"}
		_, err = database.InsertCaseInTx(ctx, tx, &named)
		require.NoError(t, err)
	})
	assert.Equal(t, "I001", first.Name)
	assert.Equal(t, "S00042/I002", second.Name)
	assert.Equal(t, model.StateDraft, first.State)
	assert.Equal(t, model.AlertOneYear, second.AlertPeriod)
	assert.NotEmpty(t, first.NextInspection)

	got, err := database.GetCase(ctx, db, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "S00042/I002", got.Name)

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = database.InsertCaseInTx(ctx, tx, &model.Case{Name: "CASE01"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	require.NoError(t, tx.Rollback())

	require.NoError(t, database.UpdateCaseState(ctx, db, first.ID, model.StateDone))
	assert.True(t, errors.Is(database.UpdateCaseState(ctx, db, first.ID, "archived"), apperr.ErrValidation))
	assert.True(t, errors.Is(database.UpdateCaseState(ctx, db, 999, model.StateDone), apperr.ErrNotFound))

	_, err = database.GetCase(ctx, db, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSequenceFollowsImportedCases(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	_, err := db.Exec(`INSERT INTO cases (name) VALUES ('S001/I041')`)
	require.NoError(t, err)
	require.NoError(t, loader.InitDatabase(ctx, db))

	inTx(t, db, func(tx *sqlx.Tx) {
		c := model.Case{}
		_, err := database.InsertCaseInTx(ctx, tx, &c)
		require.NoError(t, err)
		assert.Equal(t, "I042", c.Name)
	})
}

func TestSubCasesAndEquipment(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	manager := model.Inspector{Name: "Chef", Email: "chef@kes.fr", Active: true}
	_, err := database.InsertInspector(ctx, db, &manager)
	require.NoError(t, err)

	var c model.Case
	var sa1, sa2 model.SubCase
	var e1, e2, e3 model.Equipment
	inTx(t, db, func(tx *sqlx.Tx) {
		c = model.Case{Name: "CASE01", ClientName: "ACME", Site: "Nord", ManagerID: &manager.ID}
		_, err := database.InsertCaseInTx(ctx, tx, &c)
		require.NoError(t, err)

		sa1 = model.SubCase{CaseID: c.ID}
		_, err = database.InsertSubCaseInTx(ctx, tx, &sa1)
		require.NoError(t, err)
		sa2 = model.SubCase{CaseID: c.ID}
		_, err = database.InsertSubCaseInTx(ctx, tx, &sa2)
		require.NoError(t, err)

		e1 = model.Equipment{CaseID: c.ID, Name: "TGBT", LabelCount: 1}
		_, err = database.InsertEquipmentInTx(ctx, tx, &e1)
		require.NoError(t, err)
		e2 = model.Equipment{CaseID: c.ID, Name: "TD1", LabelCount: 1}
		_, err = database.InsertEquipmentInTx(ctx, tx, &e2)
		require.NoError(t, err)
		e3 = model.Equipment{CaseID: c.ID, Name: "Ascenseur A", Type: "ascenseur"}
		_, err = database.InsertEquipmentInTx(ctx, tx, &e3)
		require.NoError(t, err)

		_, err = database.InsertEquipmentInTx(ctx, tx, &model.Equipment{CaseID: c.ID, Name: "X", Type: "robot"})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	assert.Equal(t, "CASE01/SA001", sa1.Name)
	assert.Equal(t, "CASE01/SA002", sa2.Name)
	assert.Equal(t, "ACME", sa1.ClientName)
	assert.Equal(t, "CASE01/IEL001", e1.Code)
	assert.Equal(t, "CASE01/IEL002", e2.Code)
	assert.Regexp(t, `^CASE01/[A-Z]+001$`, e3.Code)

	assigned, err := database.ListSubCaseInspectors(ctx, db, sa1.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, model.RoleSiteReport, assigned[0].Role)

	require.NoError(t, database.AssignSubCaseInspector(ctx, db, sa1.ID, manager.ID, model.RoleReport))
	assigned, err = database.ListSubCaseInspectors(ctx, db, sa1.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, model.RoleReport, assigned[0].Role)
	assert.True(t, errors.Is(database.AssignSubCaseInspector(ctx, db, sa1.ID, manager.ID, "chef"), apperr.ErrValidation))

	planning, err := database.GetInspectorPlanning(ctx, db, manager.ID)
	require.NoError(t, err)
	assert.Len(t, planning, 2)

	subs, err := database.ListSubCases(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	pending, err := database.ListEquipmentWithoutLabels(ctx, db, c.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestLabels(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	var e model.Equipment
	var labels []model.Label
	inTx(t, db, func(tx *sqlx.Tx) {
		c := model.Case{Name: "CASE01", ClientName: "ACME"}
		_, err := database.InsertCaseInTx(ctx, tx, &c)
		require.NoError(t, err)
		e = model.Equipment{CaseID: c.ID, Name: "TGBT", LabelCount: 3}
		_, err = database.InsertEquipmentInTx(ctx, tx, &e)
		require.NoError(t, err)

		labels = []model.Label{
			{Code: "CASE01/IEL001/ET01_AAAA", Number: 1, EquipmentID: e.ID},
			{Code: "CASE01/IEL001/ET02_BBBB", Number: 2, EquipmentID: e.ID},
			{Code: "CASE01/IEL001/ET03_CCCC", Number: 3, EquipmentID: e.ID},
		}
		require.NoError(t, database.InsertLabelsInTx(ctx, tx, labels))
	})

	reg := database.NewLabelRegistry(db)
	exists, err := reg.Exists(ctx, "CASE01/IEL001/ET02_BBBB")
	require.NoError(t, err)
	assert.True(t, exists)
	free, err := reg.Reserve(ctx, "CASE01/IEL001/ET02_ZZZZ")
	require.NoError(t, err)
	assert.True(t, free)

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = database.InsertLabelsInTx(ctx, tx, []model.Label{{Code: "CASE01/IEL001/ET01_AAAA", Number: 1, EquipmentID: e.ID}})
	assert.True(t, errors.Is(err, apperr.ErrGenerationExhausted))
	require.NoError(t, tx.Rollback())

	details, err := database.ListLabelDetails(ctx, db, []int64{labels[2].ID, labels[0].ID, labels[2].ID})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "CASE01/IEL001/ET03_CCCC", details[0].Code)
	assert.Equal(t, "CASE01/IEL001/ET01_AAAA", details[1].Code)
	assert.Equal(t, "ACME", details[0].ClientName)
	assert.Equal(t, "TGBT", details[0].EquipmentName)

	_, err = database.ListLabelDetails(ctx, db, []int64{labels[0].ID, 999})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	byCode, err := database.GetLabelDetailByCode(ctx, db, "CASE01/IEL001/ET02_BBBB")
	require.NoError(t, err)
	assert.Equal(t, labels[1].ID, byCode.ID)

	byEquipment, err := database.ListLabelDetailsByEquipment(ctx, db, e.ID)
	require.NoError(t, err)
	assert.Len(t, byEquipment, 3)

	inTx(t, db, func(tx *sqlx.Tx) {
		require.NoError(t, database.DeleteLabelsByEquipmentInTx(ctx, tx, e.ID))
	})
	byEquipment, err = database.ListLabelDetailsByEquipment(ctx, db, e.ID)
	require.NoError(t, err)
	assert.Empty(t, byEquipment)
}

func TestInspectorAvailability(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	free := model.Inspector{Name: "Libre", Email: "libre@kes.fr", Active: true}
	busy := model.Inspector{Name: "Occupé", Email: "occupe@kes.fr", Active: true}
	away := model.Inspector{Name: "Absent", Active: false}
	for _, in := range []*model.Inspector{&free, &busy, &away} {
		_, err := database.InsertInspector(ctx, db, in)
		require.NoError(t, err)
	}
	_, err := database.InsertInspector(ctx, db, &model.Inspector{Name: "Doublon", Email: "libre@kes.fr"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	inTx(t, db, func(tx *sqlx.Tx) {
		c := model.Case{Name: "CASE01", InspectorIDs: []int64{busy.ID}}
		_, err := database.InsertCaseInTx(ctx, tx, &c)
		require.NoError(t, err)
	})

	check := func(id int64, want string) {
		got, err := database.GetInspector(ctx, db, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Availability, got.Name)
	}
	check(free.ID, model.AvailabilityAvailable)
	check(busy.ID, model.AvailabilityBusy)
	check(away.ID, model.AvailabilityAbsent)

	inTx(t, db, func(tx *sqlx.Tx) {
		require.NoError(t, database.UpsertInspectorInTx(ctx, tx, &model.Inspector{Name: "Libre Renommé", Email: "libre@kes.fr", Active: true}))
	})
	check(free.ID, model.AvailabilityAvailable)
	all, err := database.ListInspectors(ctx, db)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTemplatesAndAttachments(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	tpl := &model.LabelTemplate{Key: "label_template_iec", Name: "IEC", QRSize: 100, FontSize: 12, FontColor: "#000000", Active: true}
	added, err := database.InsertTemplateIfMissing(ctx, db, tpl)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = database.InsertTemplateIfMissing(ctx, db, tpl)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := database.GetTemplateByKey(ctx, db, "label_template_iec")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Revision)
	assert.False(t, got.HasImage)

	require.NoError(t, database.UpdateTemplateImage(ctx, db, got.ID, []byte{1, 2, 3}))
	got.QRX = 10
	require.NoError(t, database.UpdateTemplateLayout(ctx, db, got))
	got, err = database.GetTemplate(ctx, db, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Revision)
	assert.True(t, got.HasImage)
	assert.Equal(t, 10, got.QRX)

	missing, err := database.GetTemplateByKey(ctx, db, "label_template_none")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.True(t, errors.Is(database.UpdateTemplateImage(ctx, db, 999, nil), apperr.ErrNotFound))

	id, err := database.InsertAttachment(ctx, db, &model.Attachment{Name: "a.zip", StorageKey: "k", ResModel: model.AttachmentLabelArchive})
	require.NoError(t, err)
	a, err := database.GetAttachment(ctx, db, id)
	require.NoError(t, err)
	assert.Equal(t, "a.zip", a.Name)
	assert.Nil(t, a.ResID)
	require.NoError(t, database.DeleteAttachment(ctx, db, id))
	_, err = database.GetAttachment(ctx, db, id)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
