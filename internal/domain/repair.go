package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServiceStatus string

const (
	StatusPendingQCEntry       ServiceStatus = "pending_qc_entry"
	StatusQCEntryApproved      ServiceStatus = "qc_entry_approved"
	StatusAssignedTechnician   ServiceStatus = "assigned_technician"
	StatusWaitingPriceApproval ServiceStatus = "waiting_price_approval"
	StatusRepairInProgress     ServiceStatus = "repair_in_progress"
	StatusPendingQCExit        ServiceStatus = "pending_qc_exit"
	StatusQCExitApproved       ServiceStatus = "qc_exit_approved"
	StatusCompleted            ServiceStatus = "completed"
	StatusDelivered            ServiceStatus = "delivered"
	StatusCancelled            ServiceStatus = "cancelled"
)

var nextServiceStatus = map[ServiceStatus]ServiceStatus{
	StatusPendingQCEntry:       StatusQCEntryApproved,
	StatusQCEntryApproved:      StatusAssignedTechnician,
	StatusAssignedTechnician:   StatusWaitingPriceApproval,
	StatusWaitingPriceApproval: StatusRepairInProgress,
	StatusRepairInProgress:     StatusPendingQCExit,
	StatusPendingQCExit:        StatusQCExitApproved,
	StatusQCExitApproved:       StatusCompleted,
	StatusCompleted:            StatusDelivered,
}

// NextServiceStatus returns the single forward step from s. Terminal and
// unknown states report false.
func NextServiceStatus(s ServiceStatus) (ServiceStatus, bool) {
	next, ok := nextServiceStatus[s]
	return next, ok
}

func (s ServiceStatus) Valid() bool {
	if s == StatusDelivered || s == StatusCancelled {
		return true
	}
	_, ok := nextServiceStatus[s]
	return ok
}

func (s ServiceStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type WarrantyType string

const (
	WarrantyNone  WarrantyType = "none"
	WarrantyLabor WarrantyType = "labor"
	WarrantyParts WarrantyType = "parts"
	WarrantyFull  WarrantyType = "full"
)

func (w WarrantyType) Valid() bool {
	switch w {
	case WarrantyNone, WarrantyLabor, WarrantyParts, WarrantyFull:
		return true
	default:
		return false
	}
}

type AttachmentStage string

const (
	StageEntry    AttachmentStage = "entry"
	StageRepair   AttachmentStage = "repair"
	StageExit     AttachmentStage = "exit"
	StageDelivery AttachmentStage = "delivery"
)

func (s AttachmentStage) Valid() bool {
	switch s {
	case StageEntry, StageRepair, StageExit, StageDelivery:
		return true
	default:
		return false
	}
}

// WarrantyLookaheadDays is how many calendar days past today
// ListExpiringWarranties looks.
const WarrantyLookaheadDays = 7

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WarrantyWindow returns the half-open [from, to) range of end instants whose
// calendar date falls between today and today+WarrantyLookaheadDays.
func WarrantyWindow(now time.Time) (time.Time, time.Time) {
	from := StartOfDay(now)
	return from, from.AddDate(0, 0, WarrantyLookaheadDays+1)
}

type ServiceRecord struct {
	ID                 string          `json:"id" db:"id"`
	UserID             string          `json:"user_id" db:"user_id"`
	TicketNo           string          `json:"ticket_no" db:"ticket_no"`
	CustomerName       string          `json:"customer_name" db:"customer_name"`
	CustomerPhone      string          `json:"customer_phone" db:"customer_phone"`
	AccountID          string          `json:"account_id,omitempty" db:"account_id"`
	DeviceType         string          `json:"device_type" db:"device_type"`
	Brand              string          `json:"brand" db:"brand"`
	Model              string          `json:"model" db:"model"`
	SerialNumber       string          `json:"serial_number" db:"serial_number"`
	ProblemDescription string          `json:"problem_description" db:"problem_description"`
	Status             ServiceStatus   `json:"status" db:"status"`
	TechnicianName     string          `json:"technician_name" db:"technician_name"`
	Price              decimal.Decimal `json:"price" db:"price"`
	Currency           Currency        `json:"currency" db:"currency"`
	PriceApproved      *bool           `json:"price_approved,omitempty" db:"price_approved"`
	QCEntryAt          *time.Time      `json:"qc_entry_at,omitempty" db:"qc_entry_at"`
	QCEntryBy          string          `json:"qc_entry_by,omitempty" db:"qc_entry_by"`
	QCEntryNotes       string          `json:"qc_entry_notes,omitempty" db:"qc_entry_notes"`
	QCExitAt           *time.Time      `json:"qc_exit_at,omitempty" db:"qc_exit_at"`
	QCExitBy           string          `json:"qc_exit_by,omitempty" db:"qc_exit_by"`
	QCExitNotes        string          `json:"qc_exit_notes,omitempty" db:"qc_exit_notes"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	HasWarranty        bool            `json:"has_warranty" db:"has_warranty"`
	WarrantyType       WarrantyType    `json:"warranty_type" db:"warranty_type"`
	WarrantyDays       int             `json:"warranty_days" db:"warranty_days"`
	WarrantyStart      *time.Time      `json:"warranty_start,omitempty" db:"warranty_start"`
	WarrantyEnd        *time.Time      `json:"warranty_end,omitempty" db:"warranty_end"`
	Notes              string          `json:"notes" db:"notes"`
	CreatedBy          string          `json:"created_by" db:"created_by"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// WarrantyExpiringAt reports whether the warranty's end date falls on today
// or within the next WarrantyLookaheadDays dates. Dates are compared in
// now's location; time of day is ignored.
func (r ServiceRecord) WarrantyExpiringAt(now time.Time) bool {
	if !r.HasWarranty || r.WarrantyEnd == nil {
		return false
	}
	today := StartOfDay(now)
	end := StartOfDay(r.WarrantyEnd.In(now.Location()))
	return !end.Before(today) && !end.After(today.AddDate(0, 0, WarrantyLookaheadDays))
}

type ServiceHistory struct {
	ID              string        `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	ServiceRecordID string        `json:"service_record_id" db:"service_record_id"`
	PreviousStatus  ServiceStatus `json:"previous_status" db:"previous_status"`
	NewStatus       ServiceStatus `json:"new_status" db:"new_status"`
	Actor           string        `json:"actor" db:"actor"`
	Notes           string        `json:"notes" db:"notes"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

type ServiceAttachment struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	ServiceRecordID string          `json:"service_record_id" db:"service_record_id"`
	Stage           AttachmentStage `json:"stage" db:"stage"`
	FileName        string          `json:"file_name" db:"file_name"`
	ContentType     string          `json:"content_type" db:"content_type"`
	ObjectKey       string          `json:"object_key" db:"object_key"`
	UploadedBy      string          `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	URL             string          `json:"url,omitempty" db:"-"`
}
