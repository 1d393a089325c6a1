package service

import (
	"context"
	"fmt"
	"strings"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

func (s *Service) CreateSerial(ctx context.Context, req domain.SerialCreateRequest) (domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductSerial{}, err
	}

	number := strings.TrimSpace(req.SerialNumber)
	if number == "" || strings.TrimSpace(req.ProductID) == "" {
		return domain.ProductSerial{}, invalid("product and serial number are required")
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() {
		return domain.ProductSerial{}, invalid("serial prices must not be negative")
	}

	now := s.now()
	serial := domain.ProductSerial{
		ID:            xid.New("ser"),
		UserID:        actor.UserID,
		ProductID:     strings.TrimSpace(req.ProductID),
		SerialNumber:  number,
		Status:        domain.SerialInStock,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProductForUpdate(ctx, actor.UserID, serial.ProductID); err != nil {
			return err
		}
		return tx.CreateSerial(ctx, serial)
	})
	if err != nil {
		return domain.ProductSerial{}, err
	}

	s.logAudit(ctx, "serial_create", "serial", serial.ID, fmt.Sprintf("product=%s,serial=%s", serial.ProductID, serial.SerialNumber))
	return serial, nil
}

func (s *Service) GetSerial(ctx context.Context, id string) (domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductSerial{}, err
	}
	serial, err := s.repo.GetSerial(ctx, actor.UserID, id)
	if err != nil {
		return domain.ProductSerial{}, err
	}
	return *serial, nil
}

func (s *Service) FindSerial(ctx context.Context, serialNumber string) (domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductSerial{}, err
	}
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return domain.ProductSerial{}, invalid("serial number is required")
	}
	serial, err := s.repo.FindSerial(ctx, actor.UserID, serialNumber)
	if err != nil {
		return domain.ProductSerial{}, err
	}
	return *serial, nil
}

func (s *Service) ListSerials(ctx context.Context, productID string, status domain.SerialStatus) ([]domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, invalid("unknown serial status %q", status)
	}
	return s.repo.ListSerials(ctx, actor.UserID, productID, status)
}

// SellSerial fails fast unless the unit is in stock, so a serial is never sold twice.
func (s *Service) SellSerial(ctx context.Context, id string, req domain.SerialSellRequest) (domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductSerial{}, err
	}
	if req.SalePrice.IsNegative() {
		return domain.ProductSerial{}, invalid("sale price must not be negative")
	}

	var sold domain.ProductSerial
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		serial, err := tx.GetSerialForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		sold, err = s.sellSerial(ctx, tx, *serial, req)
		return err
	})
	if err != nil {
		return domain.ProductSerial{}, err
	}

	s.logAudit(ctx, "serial_sell", "serial", id, fmt.Sprintf("serial=%s,price=%s,buyer=%s", sold.SerialNumber, sold.SalePrice.StringFixed(2), sold.SoldToAccountID))
	return sold, nil
}

// ReturnSerial moves a sold unit to returned.
func (s *Service) ReturnSerial(ctx context.Context, id string) (domain.ProductSerial, error) {
	return s.transitionSerial(ctx, id, domain.SerialSold, domain.SerialReturned, "serial_return")
}

// RestockSerial puts a returned unit back in stock and clears its sale.
func (s *Service) RestockSerial(ctx context.Context, id string) (domain.ProductSerial, error) {
	return s.transitionSerial(ctx, id, domain.SerialReturned, domain.SerialInStock, "serial_restock")
}

func (s *Service) transitionSerial(ctx context.Context, id string, from, to domain.SerialStatus, action string) (domain.ProductSerial, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductSerial{}, err
	}

	var updated domain.ProductSerial
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		serial, err := tx.GetSerialForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if serial.Status != from {
			return fmt.Errorf("%w: serial %s is %s, expected %s", store.ErrInvalidTransition, serial.SerialNumber, serial.Status, from)
		}
		updated = *serial
		updated.Status = to
		if to == domain.SerialInStock {
			clearSale(&updated)
		}
		updated.UpdatedAt = s.now()
		return tx.UpdateSerial(ctx, updated)
	})
	if err != nil {
		return domain.ProductSerial{}, err
	}

	s.logAudit(ctx, action, "serial", id, fmt.Sprintf("serial=%s,status=%s", updated.SerialNumber, updated.Status))
	return updated, nil
}

func (s *Service) sellSerial(ctx context.Context, tx store.Tx, serial domain.ProductSerial, req domain.SerialSellRequest) (domain.ProductSerial, error) {
	if serial.Status != domain.SerialInStock {
		return domain.ProductSerial{}, fmt.Errorf("%w: serial %s is %s", store.ErrInvalidTransition, serial.SerialNumber, serial.Status)
	}

	now := s.now()
	serial.Status = domain.SerialSold
	serial.SoldAt = timePtr(now)
	serial.SoldToAccountID = strings.TrimSpace(req.BuyerAccountID)
	serial.TransactionID = strings.TrimSpace(req.TransactionID)
	if !req.SalePrice.IsZero() {
		serial.SalePrice = req.SalePrice
	}
	serial.UpdatedAt = now
	if err := tx.UpdateSerial(ctx, serial); err != nil {
		return domain.ProductSerial{}, err
	}
	return serial, nil
}

func clearSale(serial *domain.ProductSerial) {
	serial.SoldAt = nil
	serial.SoldToAccountID = ""
	serial.TransactionID = ""
}
