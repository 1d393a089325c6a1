package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

// RecordTransaction appends one ledger row. Account and bank balances are not
// touched. A stock-affecting row also moves the product and sold serials in
// the same unit.
func (s *Service) RecordTransaction(ctx context.Context, req domain.TransactionRequest) (domain.TransactionResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	tr, serialIDs, err := s.transactionFromRequest(actor, req)
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	resp := domain.TransactionResponse{Transaction: tr}
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateTransaction(ctx, tr); err != nil {
			return err
		}

		if tr.AffectsStock {
			movement, _, err := s.applyMovement(ctx, tx, actor, tr.ProductID, tr.Type.StockDirection(), tr.Quantity, string(tr.Type), tr.ID)
			if err != nil {
				return err
			}
			resp.Movement = &movement
		}

		if len(serialIDs) > 0 {
			unitPrice := tr.Amount.DivRound(decimal.NewFromInt(int64(len(serialIDs))), 2)
			for _, id := range serialIDs {
				serial, err := tx.GetSerialForUpdate(ctx, actor.UserID, id)
				if err != nil {
					return err
				}
				if tr.ProductID != "" && serial.ProductID != tr.ProductID {
					return invalid("serial %s belongs to another product", serial.SerialNumber)
				}
				sold, err := s.sellSerial(ctx, tx, *serial, domain.SerialSellRequest{
					SalePrice:      unitPrice,
					BuyerAccountID: tr.AccountID,
					TransactionID:  tr.ID,
				})
				if err != nil {
					return err
				}
				resp.Serials = append(resp.Serials, sold)
			}
		}
		return nil
	})
	if err != nil {
		return domain.TransactionResponse{}, err
	}

	s.logAudit(ctx, "transaction_create", "transaction", tr.ID, fmt.Sprintf("type=%s,amount=%s,currency=%s,method=%s,stock=%t,serials=%d",
		tr.Type, tr.Amount.StringFixed(2), tr.Currency, tr.PaymentMethod, tr.AffectsStock, len(serialIDs)))
	return resp, nil
}

func (s *Service) transactionFromRequest(actor domain.Actor, req domain.TransactionRequest) (domain.Transaction, []string, error) {
	if !req.Type.Valid() {
		return domain.Transaction{}, nil, invalid("unknown transaction type %q", req.Type)
	}
	if !req.PaymentMethod.Valid() {
		return domain.Transaction{}, nil, invalid("unknown payment method %q", req.PaymentMethod)
	}
	if !req.Amount.IsPositive() {
		return domain.Transaction{}, nil, invalid("amount must be greater than zero")
	}
	if req.Quantity < 0 {
		return domain.Transaction{}, nil, invalid("quantity must not be negative")
	}
	cur, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.Transaction{}, nil, err
	}

	serialIDs := make([]string, 0, len(req.SerialIDs))
	seen := make(map[string]struct{}, len(req.SerialIDs))
	for _, id := range req.SerialIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return domain.Transaction{}, nil, invalid("serial id is required")
		}
		if _, dup := seen[id]; dup {
			return domain.Transaction{}, nil, invalid("serial %s listed twice", id)
		}
		seen[id] = struct{}{}
		serialIDs = append(serialIDs, id)
	}
	if len(serialIDs) > 0 && req.Type != domain.TxSale {
		return domain.Transaction{}, nil, invalid("serials can only be attached to a sale")
	}

	now := s.now()
	tr := domain.Transaction{
		ID:            xid.New("trx"),
		UserID:        actor.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      cur,
		PaymentMethod: req.PaymentMethod,
		AccountID:     strings.TrimSpace(req.AccountID),
		ProductID:     strings.TrimSpace(req.ProductID),
		BankAccountID: strings.TrimSpace(req.BankAccountID),
		Description:   strings.TrimSpace(req.Description),
		AffectsStock:  req.AffectsStock,
		Quantity:      req.Quantity,
		Date:          now,
		CreatedBy:     actor.Username,
		CreatedAt:     now,
	}
	if req.Date != nil && !req.Date.IsZero() {
		tr.Date = req.Date.UTC()
	}

	if tr.AffectsStock {
		if tr.ProductID == "" {
			return domain.Transaction{}, nil, invalid("product is required when the transaction affects stock")
		}
		if tr.Quantity == 0 {
			tr.Quantity = max(len(serialIDs), 1)
		}
		if len(serialIDs) > 0 && tr.Quantity != len(serialIDs) {
			return domain.Transaction{}, nil, invalid("quantity %d does not match %d serials", tr.Quantity, len(serialIDs))
		}
	}
	return tr, serialIDs, nil
}

// CancelTransaction removes a ledger row. With reverse set it also writes a
// compensating movement for every movement the row caused and puts serials it
// sold back in stock.
func (s *Service) CancelTransaction(ctx context.Context, id string, reverse bool) (domain.CancelTransactionResponse, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.CancelTransactionResponse{}, err
	}

	resp := domain.CancelTransactionResponse{TransactionID: id, Reversed: reverse}
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTransactionForUpdate(ctx, actor.UserID, id); err != nil {
			return err
		}

		if reverse {
			movements, err := tx.ListMovementsByTransaction(ctx, actor.UserID, id)
			if err != nil {
				return err
			}
			for _, m := range movements {
				if m.Type == domain.MovementAdjustment || m.Quantity == 0 {
					continue
				}
				compensation, _, err := s.applyMovement(ctx, tx, actor, m.ProductID, m.Type.Opposite(), m.Quantity, "reversal of "+id, id)
				if err != nil {
					return err
				}
				resp.Movements = append(resp.Movements, compensation)
			}

			serials, err := tx.ListSerialsByTransaction(ctx, actor.UserID, id)
			if err != nil {
				return err
			}
			for _, serial := range serials {
				if serial.Status != domain.SerialSold {
					continue
				}
				serial.Status = domain.SerialInStock
				clearSale(&serial)
				serial.UpdatedAt = s.now()
				if err := tx.UpdateSerial(ctx, serial); err != nil {
					return err
				}
				resp.Serials = append(resp.Serials, serial)
			}
		}

		return tx.DeleteTransaction(ctx, actor.UserID, id)
	})
	if err != nil {
		return domain.CancelTransactionResponse{}, err
	}

	s.logAudit(ctx, "transaction_cancel", "transaction", id, fmt.Sprintf("reverse=%t,movements=%d,serials=%d", reverse, len(resp.Movements), len(resp.Serials)))
	return resp, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	tr, err := s.repo.GetTransaction(ctx, actor.UserID, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tr, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalid("unknown transaction type %q", filter.Type)
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return nil, invalid("unknown payment method %q", filter.PaymentMethod)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("range end is before its start")
	}
	return s.repo.ListTransactions(ctx, actor.UserID, filter)
}
