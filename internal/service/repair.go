package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/storage"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

func (s *Service) CreateServiceRecord(ctx context.Context, req domain.ServiceRecordCreateRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	customer := strings.TrimSpace(req.CustomerName)
	device := strings.TrimSpace(req.DeviceType)
	problem := strings.TrimSpace(req.ProblemDescription)
	if customer == "" || device == "" || problem == "" {
		return domain.ServiceRecord{}, invalid("customer, device type and problem description are required")
	}
	if req.Price.IsNegative() {
		return domain.ServiceRecord{}, invalid("price must not be negative")
	}
	cur, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	now := s.now()
	record := domain.ServiceRecord{
		ID:                 xid.New("svc"),
		UserID:             actor.UserID,
		TicketNo:           newTicketNo(now),
		CustomerName:       customer,
		CustomerPhone:      strings.TrimSpace(req.CustomerPhone),
		AccountID:          strings.TrimSpace(req.AccountID),
		DeviceType:         device,
		Brand:              strings.TrimSpace(req.Brand),
		Model:              strings.TrimSpace(req.Model),
		SerialNumber:       strings.TrimSpace(req.SerialNumber),
		ProblemDescription: problem,
		Status:             domain.StatusPendingQCEntry,
		Price:              req.Price,
		Currency:           cur,
		WarrantyType:       domain.WarrantyNone,
		Notes:              strings.TrimSpace(req.Notes),
		CreatedBy:          actor.Username,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.CreateServiceRecord(ctx, record); err != nil {
				return err
			}
			return tx.CreateServiceHistory(ctx, s.historyEntry(actor, record, "", "ticket opened"))
		})
		if !errors.Is(err, store.ErrDuplicateTicket) || attempt == ticketAttempts {
			break
		}
		s.logger.Debug("ticket number taken, regenerating", zap.String("ticket_no", record.TicketNo))
		record.TicketNo = newTicketNo(now)
	}
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_create", "service_record", record.ID, fmt.Sprintf("ticket=%s,device=%s", record.TicketNo, record.DeviceType))
	return record, nil
}

func (s *Service) GetServiceRecord(ctx context.Context, id string) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	record, err := s.repo.GetServiceRecord(ctx, actor.UserID, id)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	return *record, nil
}

func (s *Service) ListServiceRecords(ctx context.Context, status domain.ServiceStatus) ([]domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, invalid("unknown service status %q", status)
	}
	return s.repo.ListServiceRecords(ctx, actor.UserID, status)
}

// UpdateServiceRecord edits intake details. Status never changes here.
func (s *Service) UpdateServiceRecord(ctx context.Context, id string, req domain.ServiceRecordUpdateRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	customer := strings.TrimSpace(req.CustomerName)
	device := strings.TrimSpace(req.DeviceType)
	problem := strings.TrimSpace(req.ProblemDescription)
	if customer == "" || device == "" || problem == "" {
		return domain.ServiceRecord{}, invalid("customer, device type and problem description are required")
	}

	var updated domain.ServiceRecord
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if record.Status.Terminal() {
			return fmt.Errorf("%w: ticket %s is %s", store.ErrInvalidTransition, record.TicketNo, record.Status)
		}
		updated = *record
		updated.CustomerName = customer
		updated.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
		updated.DeviceType = device
		updated.Brand = strings.TrimSpace(req.Brand)
		updated.Model = strings.TrimSpace(req.Model)
		updated.SerialNumber = strings.TrimSpace(req.SerialNumber)
		updated.ProblemDescription = problem
		updated.Notes = strings.TrimSpace(req.Notes)
		updated.UpdatedAt = s.now()
		return tx.UpdateServiceRecord(ctx, updated)
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_update", "service_record", id, "ticket="+updated.TicketNo)
	return updated, nil
}

func (s *Service) DeleteServiceRecord(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteServiceRecord(ctx, actor.UserID, id)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "service_delete", "service_record", id, "")
	return nil
}

// AdvanceServiceRecord moves a ticket exactly one step forward. A ticket
// waiting for price approval only moves through DecidePrice.
func (s *Service) AdvanceServiceRecord(ctx context.Context, id string, req domain.ServiceAdvanceRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	notes := strings.TrimSpace(req.Notes)
	technician := strings.TrimSpace(req.Technician)

	var updated domain.ServiceRecord
	var previous domain.ServiceStatus
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if record.Status == domain.StatusWaitingPriceApproval {
			return fmt.Errorf("%w: ticket %s", store.ErrPriceApprovalRequired, record.TicketNo)
		}
		next, ok := domain.NextServiceStatus(record.Status)
		if !ok {
			return fmt.Errorf("%w: ticket %s is %s", store.ErrInvalidTransition, record.TicketNo, record.Status)
		}

		previous = record.Status
		updated = *record
		now := s.now()
		switch next {
		case domain.StatusQCEntryApproved:
			updated.QCEntryAt = timePtr(now)
			updated.QCEntryBy = actor.Username
			updated.QCEntryNotes = notes
		case domain.StatusAssignedTechnician:
			if technician == "" {
				technician = record.TechnicianName
			}
			if technician == "" {
				return invalid("technician is required to assign the ticket")
			}
			updated.TechnicianName = technician
		case domain.StatusQCExitApproved:
			updated.QCExitAt = timePtr(now)
			updated.QCExitBy = actor.Username
			updated.QCExitNotes = notes
		case domain.StatusCompleted:
			updated.CompletedAt = timePtr(now)
		case domain.StatusDelivered:
			updated.DeliveredAt = timePtr(now)
		}
		updated.Status = next
		updated.UpdatedAt = now

		if err := tx.UpdateServiceRecord(ctx, updated); err != nil {
			return err
		}
		return tx.CreateServiceHistory(ctx, s.historyEntry(actor, updated, previous, notes))
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_advance", "service_record", id, fmt.Sprintf("from=%s,to=%s", previous, updated.Status))
	return updated, nil
}

// DecidePrice settles a ticket parked at waiting_price_approval. Approval
// resumes the repair; rejection keeps the ticket parked and writes no history.
func (s *Service) DecidePrice(ctx context.Context, id string, req domain.PriceDecisionRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if req.Price.IsNegative() {
		return domain.ServiceRecord{}, invalid("price must not be negative")
	}
	notes := strings.TrimSpace(req.Notes)

	var updated domain.ServiceRecord
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if record.Status != domain.StatusWaitingPriceApproval {
			return fmt.Errorf("%w: ticket %s is %s", store.ErrInvalidTransition, record.TicketNo, record.Status)
		}

		updated = *record
		approved := req.Approve
		updated.PriceApproved = &approved
		updated.UpdatedAt = s.now()
		if !req.Approve {
			return tx.UpdateServiceRecord(ctx, updated)
		}

		if !req.Price.IsZero() {
			updated.Price = req.Price
		}
		updated.Status = domain.StatusRepairInProgress
		if err := tx.UpdateServiceRecord(ctx, updated); err != nil {
			return err
		}
		return tx.CreateServiceHistory(ctx, s.historyEntry(actor, updated, domain.StatusWaitingPriceApproval, notes))
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_price_decision", "service_record", id, fmt.Sprintf("approved=%t,price=%s", req.Approve, updated.Price.StringFixed(2)))
	return updated, nil
}

func (s *Service) CancelServiceRecord(ctx context.Context, id string, req domain.ServiceCancelRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	notes := strings.TrimSpace(req.Notes)

	var updated domain.ServiceRecord
	var previous domain.ServiceStatus
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if record.Status.Terminal() {
			return fmt.Errorf("%w: ticket %s is %s", store.ErrInvalidTransition, record.TicketNo, record.Status)
		}
		previous = record.Status
		updated = *record
		now := s.now()
		updated.Status = domain.StatusCancelled
		updated.CancelledAt = timePtr(now)
		updated.UpdatedAt = now
		if err := tx.UpdateServiceRecord(ctx, updated); err != nil {
			return err
		}
		return tx.CreateServiceHistory(ctx, s.historyEntry(actor, updated, previous, notes))
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_cancel", "service_record", id, fmt.Sprintf("from=%s", previous))
	return updated, nil
}

// ActivateWarranty starts a warranty window of days from now. Type none
// clears any existing window.
func (s *Service) ActivateWarranty(ctx context.Context, id string, req domain.WarrantyRequest) (domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if !req.Type.Valid() {
		return domain.ServiceRecord{}, invalid("unknown warranty type %q", req.Type)
	}
	if req.Type != domain.WarrantyNone && req.Days < 1 {
		return domain.ServiceRecord{}, invalid("warranty needs at least one day")
	}

	var updated domain.ServiceRecord
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if record.Status == domain.StatusCancelled {
			return fmt.Errorf("%w: ticket %s is cancelled", store.ErrInvalidTransition, record.TicketNo)
		}

		updated = *record
		now := s.now()
		updated.WarrantyType = req.Type
		if req.Type == domain.WarrantyNone {
			updated.HasWarranty = false
			updated.WarrantyDays = 0
			updated.WarrantyStart = nil
			updated.WarrantyEnd = nil
		} else {
			updated.HasWarranty = true
			updated.WarrantyDays = req.Days
			updated.WarrantyStart = timePtr(now)
			updated.WarrantyEnd = timePtr(now.AddDate(0, 0, req.Days))
		}
		updated.UpdatedAt = now
		return tx.UpdateServiceRecord(ctx, updated)
	})
	if err != nil {
		return domain.ServiceRecord{}, err
	}

	s.logAudit(ctx, "service_warranty", "service_record", id, fmt.Sprintf("type=%s,days=%d", updated.WarrantyType, updated.WarrantyDays))
	return updated, nil
}

// ListExpiringWarranties returns warranties ending within the next seven days.
func (s *Service) ListExpiringWarranties(ctx context.Context) ([]domain.ServiceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from, to := domain.WarrantyWindow(now)
	records, err := s.repo.ListWarrantiesEndingBetween(ctx, actor.UserID, from, to)
	if err != nil {
		return nil, err
	}
	result := make([]domain.ServiceRecord, 0, len(records))
	for _, record := range records {
		if record.WarrantyExpiringAt(now) {
			result = append(result, record)
		}
	}
	return result, nil
}

func (s *Service) ListServiceHistory(ctx context.Context, id string) ([]domain.ServiceHistory, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetServiceRecord(ctx, actor.UserID, id); err != nil {
		return nil, err
	}
	return s.repo.ListServiceHistory(ctx, actor.UserID, id)
}

// AddServiceAttachment registers a photo or document for a ticket stage and
// returns a presigned URL the client uploads the bytes to.
func (s *Service) AddServiceAttachment(ctx context.Context, id string, req domain.AttachmentRequest) (domain.AttachmentResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.AttachmentResponse{}, err
	}
	if !req.Stage.Valid() {
		return domain.AttachmentResponse{}, invalid("unknown attachment stage %q", req.Stage)
	}
	fileName := strings.TrimSpace(req.FileName)
	contentType := strings.TrimSpace(req.ContentType)
	if fileName == "" || contentType == "" {
		return domain.AttachmentResponse{}, invalid("file name and content type are required")
	}

	attachment := domain.ServiceAttachment{
		ID:              xid.New("att"),
		UserID:          actor.UserID,
		ServiceRecordID: id,
		Stage:           req.Stage,
		FileName:        fileName,
		ContentType:     contentType,
		ObjectKey:       storage.AttachmentKey(id, string(req.Stage), fileName),
		UploadedBy:      actor.Username,
		CreatedAt:       s.now(),
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetServiceRecordForUpdate(ctx, actor.UserID, id); err != nil {
			return err
		}
		return tx.CreateServiceAttachment(ctx, attachment)
	})
	if err != nil {
		return domain.AttachmentResponse{}, err
	}

	uploadURL, _, err := s.storage.UploadURL(ctx, attachment.ObjectKey, contentType)
	if err != nil {
		return domain.AttachmentResponse{}, fmt.Errorf("presign upload: %w", err)
	}

	s.logAudit(ctx, "service_attachment", "service_record", id, fmt.Sprintf("stage=%s,file=%s", attachment.Stage, attachment.FileName))
	return domain.AttachmentResponse{Attachment: attachment, UploadURL: uploadURL}, nil
}

func (s *Service) ListServiceAttachments(ctx context.Context, id string) ([]domain.ServiceAttachment, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetServiceRecord(ctx, actor.UserID, id); err != nil {
		return nil, err
	}

	attachments, err := s.repo.ListServiceAttachments(ctx, actor.UserID, id)
	if err != nil {
		return nil, err
	}
	for i := range attachments {
		url, _, err := s.storage.DownloadURL(ctx, attachments[i].ObjectKey)
		if err != nil {
			s.logger.Warn("failed to presign attachment download",
				zap.String("attachment_id", attachments[i].ID),
				zap.Error(err),
			)
			continue
		}
		attachments[i].URL = url
	}
	return attachments, nil
}

func (s *Service) historyEntry(actor domain.Actor, record domain.ServiceRecord, previous domain.ServiceStatus, notes string) domain.ServiceHistory {
	return domain.ServiceHistory{
		ID:              xid.New("hist"),
		UserID:          record.UserID,
		ServiceRecordID: record.ID,
		PreviousStatus:  previous,
		NewStatus:       record.Status,
		Actor:           actor.Username,
		Notes:           notes,
		CreatedAt:       s.now(),
	}
}

// ticketNumber renders SRV-YYYYMMDD-xxxx.
// ticketAttempts bounds how often CreateServiceRecord redraws a taken number.
const ticketAttempts = 3

var newTicketNo = ticketNumber

func ticketNumber(at time.Time) string {
	return fmt.Sprintf("SRV-%s-%s", at.Format("20060102"), strings.ToUpper(xid.Short(8)))
}
