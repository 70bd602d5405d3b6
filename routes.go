package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"kes/affaire"
	"kes/config"
	"kes/content"
	"kes/equipment"
	"kes/inspector"
	"kes/label"
	"kes/labels"
	"kes/loader"
	"kes/metrics"
	"kes/report"
	"kes/respond"
	"kes/storage"
)

// NewRouter builds the HTTP surface of the service.
func NewRouter(dbConn *sqlx.DB, store *storage.Store, svc *labels.Service, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/content/{id}", content.Handler(dbConn, store))
	r.Get("/inspection/etiquette/*", label.LookupHandler(svc))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", GetConfigHandler())
		r.Post("/config", SaveConfigHandler())

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", affaire.ListCasesHandler(dbConn))
			r.Post("/", affaire.CreateCaseHandler(dbConn))
			r.Get("/{id}", affaire.GetCaseHandler(dbConn))
			r.Post("/{id}/state", affaire.UpdateStateHandler(dbConn))
			r.Get("/{id}/subcases", affaire.ListSubCasesHandler(dbConn))
			r.Post("/{id}/subcases", affaire.CreateSubCaseHandler(dbConn))
			r.Get("/{id}/equipment", equipment.ListHandler(dbConn))
			r.Post("/{id}/equipment", equipment.CreateHandler(dbConn))
			r.Post("/{id}/labels", label.GenerateForCaseHandler(svc))
			r.Get("/{id}/reports", report.ListCaseReportsHandler(dbConn))
			r.Post("/{id}/reports", report.UploadCaseReportHandler(dbConn, store))
		})

		r.Get("/equipment/types", equipment.TypesHandler())
		r.Get("/equipment/{id}/labels", equipment.ListLabelsHandler(dbConn, cfg.BaseURL))
		r.Post("/equipment/{id}/labels", label.GenerateForEquipmentHandler(svc))

		r.Post("/subcases/{id}/lines", affaire.CreateLineHandler(dbConn))
		r.Post("/subcases/{id}/labels", label.GenerateForSubCaseHandler(svc))
		r.Post("/subcases/{id}/labels/archive", label.SubCaseArchiveHandler(svc))
		r.Post("/subcases/{id}/inspectors", affaire.AssignInspectorHandler(dbConn))

		r.Post("/lines/{id}/labels", label.GenerateForLineHandler(svc))

		r.Post("/labels/archive", label.ArchiveHandler(svc))
		r.Post("/labels/scan", label.ScanHandler(svc))
		r.Get("/labels/{id}/image", label.ImageHandler(svc))
		r.Post("/labels/{id}/qrcode", label.QRCodeHandler(svc))
		r.Get("/labels/{id}/reports", report.ListLabelReportsHandler(dbConn))

		r.Get("/inspectors", inspector.ListHandler(dbConn))
		r.Post("/inspectors", inspector.CreateHandler(dbConn))
		r.Post("/inspectors/import", inspector.ImportHandler(dbConn))
		r.Get("/inspectors/{id}/planning", inspector.PlanningHandler(dbConn))

		r.Post("/reports", report.UploadHandler(dbConn, store))
		r.Get("/reports/{id}/download", report.DownloadHandler(dbConn))

		r.Get("/templates", label.ListTemplatesHandler(dbConn))
		r.Post("/templates/reseed", loader.ReseedTemplatesHandler(dbConn, cfg.TemplateSeed, cfg.TemplateDir))
		r.Put("/templates/{id}", label.UpdateTemplateHandler(dbConn))
		r.Put("/templates/{id}/image", label.UpdateTemplateImageHandler(dbConn))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusNotFound, "Ressource introuvable.")
	})
	return r
}
