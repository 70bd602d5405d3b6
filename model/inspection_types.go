package model

// Case states.
const (
	StateDraft      = "draft"
	StateInProgress = "in_progress"
	StateDone       = "done"
)

// Alert periods of a case, used for the next inspection date.
const (
	AlertSixMonths  = "6mois"
	AlertOneYear    = "1an"
	AlertTwoYears   = "2ans"
	AlertThreeYears = "3ans"
)

// Case is an inspection job ("affaire").
type Case struct {
	ID                int64   `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	OrderRef          string  `db:"order_ref" json:"orderRef"`
	ClientName        string  `db:"client_name" json:"clientName"`
	Site              string  `db:"site" json:"site"`
	Location          string  `db:"location" json:"location"`
	ManagerID         *int64  `db:"manager_id" json:"managerId"`
	InterventionStart string  `db:"intervention_start" json:"interventionStart"`
	InterventionEnd   string  `db:"intervention_end" json:"interventionEnd"`
	WritingDate       string  `db:"writing_date" json:"writingDate"`
	AlertPeriod       string  `db:"alert_period" json:"alertPeriod"`
	NextInspection    string  `db:"next_inspection" json:"nextInspection"`
	State             string  `db:"state" json:"state"`
	CreatedAt         string  `db:"created_at" json:"createdAt"`
	InspectorIDs      []int64 `db:"-" json:"inspectorIds,omitempty"`
}

// SubCase is a part of a case. Client, site and location are copied from the case.
type SubCase struct {
	ID          int64  `db:"id" json:"id"`
	CaseID      int64  `db:"case_id" json:"caseId"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	State       string `db:"state" json:"state"`
	ClientName  string `db:"client_name" json:"clientName"`
	Site        string `db:"site" json:"site"`
	Location    string `db:"location" json:"location"`
}

// Sub-case inspector roles.
const (
	RoleSite       = "site"
	RoleReport     = "rapport"
	RoleSiteReport = "site_rapport"
)

type SubCaseInspector struct {
	ID            int64  `db:"id" json:"id"`
	SubCaseID     int64  `db:"sub_case_id" json:"subCaseId"`
	InspectorID   int64  `db:"inspector_id" json:"inspectorId"`
	InspectorName string `db:"inspector_name" json:"inspectorName"`
	Role          string `db:"role" json:"role"`
}

// Inspector availability values.
const (
	AvailabilityAbsent    = "absent"
	AvailabilityBusy      = "occupe"
	AvailabilityAvailable = "disponible"
)

type Inspector struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	Phone        string `db:"phone" json:"phone"`
	JobTitle     string `db:"job_title" json:"jobTitle"`
	Description  string `db:"description" json:"description"`
	Active       bool   `db:"active" json:"active"`
	Availability string `db:"availability" json:"availability"`
}

// PlanningEntry is one sub-case an inspector is assigned to.
type PlanningEntry struct {
	SubCaseID         int64  `db:"sub_case_id" json:"subCaseId"`
	SubCaseName       string `db:"sub_case_name" json:"subCaseName"`
	CaseName          string `db:"case_name" json:"caseName"`
	Role              string `db:"role" json:"role"`
	InterventionStart string `db:"intervention_start" json:"interventionStart"`
	InterventionEnd   string `db:"intervention_end" json:"interventionEnd"`
	State             string `db:"state" json:"state"`
}

type Equipment struct {
	ID          int64  `db:"id" json:"id"`
	CaseID      int64  `db:"case_id" json:"caseId"`
	Name        string `db:"name" json:"name"`
	Sequence    int    `db:"sequence" json:"sequence"`
	Type        string `db:"type" json:"type"`
	Code        string `db:"code" json:"code"`
	LabelCount  int    `db:"label_count" json:"labelCount"`
	Location    string `db:"location" json:"location"`
	Description string `db:"description" json:"description"`
	State       string `db:"state" json:"state"`
}

// ProductLine is a product ordered on a sub-case, with the number of labels it needs.
type ProductLine struct {
	ID          int64  `db:"id" json:"id"`
	SubCaseID   int64  `db:"sub_case_id" json:"subCaseId"`
	ProductName string `db:"product_name" json:"productName"`
	ProductCode string `db:"product_code" json:"productCode"`
	LabelCount  int    `db:"label_count" json:"labelCount"`
}

type Label struct {
	ID            int64  `db:"id" json:"id"`
	Code          string `db:"code" json:"code"`
	Number        int    `db:"number" json:"number"`
	EquipmentID   int64  `db:"equipment_id" json:"equipmentId"`
	SubCaseID     *int64 `db:"sub_case_id" json:"subCaseId"`
	ProductLineID *int64 `db:"product_line_id" json:"productLineId"`
	GeneratedAt   string `db:"generated_at" json:"generatedAt"`
}

// LabelDetail is a label joined with what its image needs.
type LabelDetail struct {
	Label
	EquipmentName string `db:"equipment_name" json:"equipmentName"`
	EquipmentType string `db:"equipment_type" json:"equipmentType"`
	CaseName      string `db:"case_name" json:"caseName"`
	SubCaseName   string `db:"sub_case_name" json:"subCaseName"`
	ClientName    string `db:"client_name" json:"clientName"`
	Site          string `db:"site" json:"site"`
	Location      string `db:"location" json:"location"`
	ProductName   string `db:"product_name" json:"productName"`
	URL           string `db:"-" json:"url,omitempty"`
}

type LabelTemplate struct {
	ID            int64   `db:"id" json:"id"`
	Key           string  `db:"template_key" json:"key"`
	Name          string  `db:"name" json:"name"`
	Sequence      int     `db:"sequence" json:"sequence"`
	EquipmentType string  `db:"equipment_type" json:"equipmentType"`
	Image         []byte  `db:"image" json:"-"`
	Revision      int     `db:"revision" json:"revision"`
	QRX           int     `db:"qr_x" json:"qrX"`
	QRY           int     `db:"qr_y" json:"qrY"`
	QRSize        int     `db:"qr_size" json:"qrSize"`
	TextX         int     `db:"text_x" json:"textX"`
	TextY         int     `db:"text_y" json:"textY"`
	CodeX         int     `db:"code_x" json:"codeX"`
	CodeY         int     `db:"code_y" json:"codeY"`
	FontSize      float64 `db:"font_size" json:"fontSize"`
	FontColor     string  `db:"font_color" json:"fontColor"`
	Bold          bool    `db:"bold" json:"bold"`
	Active        bool    `db:"active" json:"active"`
	HasImage      bool    `db:"-" json:"hasImage"`
}

// Attachment is a stored file owned by a record.
type Attachment struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	MimeType   string `db:"mime_type" json:"mimeType"`
	StorageKey string `db:"storage_key" json:"-"`
	ResModel   string `db:"res_model" json:"resModel"`
	ResID      *int64 `db:"res_id" json:"resId"`
	Size       int64  `db:"size" json:"size"`
	CreatedAt  string `db:"created_at" json:"createdAt"`
}

// Report file types.
const (
	FileTypePDF  = "pdf"
	FileTypeWord = "word"
)

// Report is an inspection report attached to a label, or directly to equipment
// or a sub-case.
type Report struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Filename     string `db:"filename" json:"filename"`
	FileType     string `db:"file_type" json:"fileType"`
	AttachmentID int64  `db:"attachment_id" json:"attachmentId"`
	LabelID      *int64 `db:"label_id" json:"labelId"`
	EquipmentID  *int64 `db:"equipment_id" json:"equipmentId"`
	SubCaseID    *int64 `db:"sub_case_id" json:"subCaseId"`
	CreatedAt    string `db:"created_at" json:"createdAt"`
}

type CaseReport struct {
	ID           int64  `db:"id" json:"id"`
	CaseID       int64  `db:"case_id" json:"caseId"`
	Name         string `db:"name" json:"name"`
	Filename     string `db:"filename" json:"filename"`
	FileType     string `db:"file_type" json:"fileType"`
	AttachmentID int64  `db:"attachment_id" json:"attachmentId"`
	CreatedAt    string `db:"created_at" json:"createdAt"`
}

// Attachment owners.
const (
	AttachmentLabelArchive = "labels.archive"
	AttachmentLabelQRCode  = "labels.qrcode"
	AttachmentReport       = "reports"
	AttachmentCaseReport   = "case_reports"
)
