package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

// ApplyStockMovement records one movement against a product and updates its
// quantity in the same unit. Either both writes land or neither does.
func (s *Service) ApplyStockMovement(ctx context.Context, productID string, req domain.StockMovementRequest) (domain.StockMovementResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.StockMovementResponse{}, err
	}
	if !req.Type.Valid() {
		return domain.StockMovementResponse{}, invalid("unknown movement type %q", req.Type)
	}

	var resp domain.StockMovementResponse
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		movement, product, err := s.applyMovement(ctx, tx, actor, productID, req.Type, req.Quantity, strings.TrimSpace(req.Reason), "")
		if err != nil {
			return err
		}
		resp = domain.StockMovementResponse{Movement: movement, Product: product}
		return nil
	})
	if err != nil {
		return domain.StockMovementResponse{}, err
	}

	if resp.Product.LowStock() {
		s.logger.Info("product at or below minimum stock",
			zap.String("product_id", resp.Product.ID),
			zap.Int("quantity", resp.Product.Quantity),
			zap.Int("min_stock_level", resp.Product.MinStockLevel),
		)
	}
	s.logAudit(ctx, "stock_movement", "product", productID, fmt.Sprintf("type=%s,quantity=%d,previous=%d,new=%d",
		resp.Movement.Type, resp.Movement.Quantity, resp.Movement.PreviousQuantity, resp.Movement.NewQuantity))
	return resp, nil
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if productID != "" {
		if _, err := s.repo.GetProduct(ctx, actor.UserID, productID); err != nil {
			return nil, err
		}
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListStockMovements(ctx, actor.UserID, productID, limit)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStockProducts(ctx, actor.UserID)
}

// applyMovement locks the product, computes the new level and writes the
// movement row with its before/after snapshot followed by the new quantity.
func (s *Service) applyMovement(ctx context.Context, tx store.Tx, actor domain.Actor, productID string, typ domain.MovementType, quantity int, reason string, transactionID string) (domain.StockMovement, domain.Product, error) {
	product, err := tx.GetProductForUpdate(ctx, actor.UserID, productID)
	if err != nil {
		return domain.StockMovement{}, domain.Product{}, err
	}

	logged, next, err := domain.ComputeMovement(product.Quantity, typ, quantity, s.allowNegative)
	if err != nil {
		return domain.StockMovement{}, domain.Product{}, movementError(err)
	}

	at := s.now()
	movement := domain.StockMovement{
		ID:               xid.New("mov"),
		UserID:           actor.UserID,
		ProductID:        product.ID,
		Type:             typ,
		Quantity:         logged,
		PreviousQuantity: product.Quantity,
		NewQuantity:      next,
		Reason:           reason,
		TransactionID:    transactionID,
		CreatedBy:        actor.Username,
		CreatedAt:        at,
	}
	if err := tx.CreateStockMovement(ctx, movement); err != nil {
		return domain.StockMovement{}, domain.Product{}, err
	}
	if err := tx.UpdateProductQuantity(ctx, actor.UserID, product.ID, next, at); err != nil {
		return domain.StockMovement{}, domain.Product{}, err
	}

	product.Quantity = next
	product.UpdatedAt = at
	return movement, *product, nil
}
