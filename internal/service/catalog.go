package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

const openingStockReason = "initial stock"

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, actor.UserID)
}

// CreateCategory allows one level of nesting: a parent must itself be top-level.
func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Category{}, err
	}

	category := domain.Category{
		ID:             xid.New("cat"),
		UserID:         actor.UserID,
		Name:           strings.TrimSpace(req.Name),
		Color:          strings.TrimSpace(req.Color),
		ParentID:       strings.TrimSpace(req.ParentID),
		RequiresSerial: req.RequiresSerial,
		CreatedAt:      s.now(),
	}
	if category.Name == "" {
		return domain.Category{}, invalid("category name is required")
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if err := checkCategoryName(ctx, tx, actor.UserID, category.Name, ""); err != nil {
			return err
		}
		if category.ParentID != "" {
			if err := checkCategoryParent(ctx, tx, actor.UserID, category.ParentID); err != nil {
				return err
			}
		}
		return tx.CreateCategory(ctx, category)
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_create", "category", category.ID, fmt.Sprintf("name=%s,requires_serial=%t", category.Name, category.RequiresSerial))
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Category{}, err
	}

	name := strings.TrimSpace(req.Name)
	parentID := strings.TrimSpace(req.ParentID)
	if name == "" {
		return domain.Category{}, invalid("category name is required")
	}
	if parentID == id {
		return domain.Category{}, invalid("category cannot be its own parent")
	}

	var updated domain.Category
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetCategory(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if err := checkCategoryName(ctx, tx, actor.UserID, name, id); err != nil {
			return err
		}
		if parentID != "" {
			if err := checkCategoryParent(ctx, tx, actor.UserID, parentID); err != nil {
				return err
			}
			children, err := tx.CountChildCategories(ctx, actor.UserID, id)
			if err != nil {
				return err
			}
			if children > 0 {
				return invalid("a category with children cannot become a child")
			}
		}

		updated = *existing
		updated.Name = name
		updated.Color = strings.TrimSpace(req.Color)
		updated.ParentID = parentID
		updated.RequiresSerial = req.RequiresSerial
		if err := tx.UpdateCategory(ctx, updated); err != nil {
			return err
		}
		if existing.Name == name {
			return nil
		}
		// Products reference categories by name.
		moved, err := tx.RenameProductCategory(ctx, actor.UserID, existing.Name, name, s.now())
		if err != nil {
			return err
		}
		if moved > 0 {
			s.logger.Info("category rename cascaded to products",
				zap.String("category_id", id),
				zap.Int("products", moved),
			)
		}
		return nil
	})
	if err != nil {
		return domain.Category{}, err
	}

	s.logAudit(ctx, "category_update", "category", id, fmt.Sprintf("name=%s,requires_serial=%t", updated.Name, updated.RequiresSerial))
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetCategory(ctx, actor.UserID, id); err != nil {
			return err
		}
		children, err := tx.CountChildCategories(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: category has %d subcategories", store.ErrReferenced, children)
		}
		return tx.DeleteCategory(ctx, actor.UserID, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "category_delete", "category", id, "")
	return nil
}

func checkCategoryName(ctx context.Context, tx store.Tx, userID, name, selfID string) error {
	existing, err := tx.GetCategoryByName(ctx, userID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return invalid("category %q already exists", name)
	}
	return nil
}

func checkCategoryParent(ctx context.Context, tx store.Tx, userID, parentID string) error {
	parent, err := tx.GetCategory(ctx, userID, parentID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("parent category not found")
	}
	if err != nil {
		return err
	}
	if parent.ParentID != "" {
		return invalid("categories nest only one level deep")
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.UserID)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.UserID, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// CreateProduct writes the product, its serials and the opening movement as
// one unit. When the category requires serials the request must carry exactly
// quantity distinct serial numbers.
func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.ProductCreateResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductCreateResponse{}, err
	}

	product, err := s.productFromRequest(actor, req)
	if err != nil {
		return domain.ProductCreateResponse{}, err
	}
	if req.Quantity < 0 {
		return domain.ProductCreateResponse{}, invalid("quantity must not be negative")
	}

	serials, err := normalizeSerialInputs(req.Serials, product)
	if err != nil {
		return domain.ProductCreateResponse{}, err
	}
	if len(serials) > 0 && len(serials) != req.Quantity {
		return domain.ProductCreateResponse{}, invalid("got %d serial numbers for quantity %d", len(serials), req.Quantity)
	}

	resp := domain.ProductCreateResponse{Serials: []domain.ProductSerial{}}
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if product.Category != "" {
			category, err := tx.GetCategoryByName(ctx, actor.UserID, product.Category)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return err
			case category.RequiresSerial:
				if req.Quantity < 1 || len(serials) != req.Quantity {
					return invalid("category %q requires one serial number per unit", category.Name)
				}
			}
		}

		if err := tx.CreateProduct(ctx, product); err != nil {
			return err
		}

		for _, input := range serials {
			serial := domain.ProductSerial{
				ID:            xid.New("ser"),
				UserID:        actor.UserID,
				ProductID:     product.ID,
				SerialNumber:  input.SerialNumber,
				Status:        domain.SerialInStock,
				PurchasePrice: input.PurchasePrice,
				SalePrice:     input.SalePrice,
				CreatedAt:     product.CreatedAt,
				UpdatedAt:     product.CreatedAt,
			}
			if err := tx.CreateSerial(ctx, serial); err != nil {
				return err
			}
			resp.Serials = append(resp.Serials, serial)
		}

		resp.Product = product
		if req.Quantity > 0 {
			movement, updated, err := s.applyMovement(ctx, tx, actor, product.ID, domain.MovementIn, req.Quantity, openingStockReason, "")
			if err != nil {
				return err
			}
			resp.Movement = &movement
			resp.Product = updated
		}
		return nil
	})
	if err != nil {
		return domain.ProductCreateResponse{}, err
	}

	s.logAudit(ctx, "product_create", "product", product.ID, fmt.Sprintf("name=%s,quantity=%d,serials=%d", product.Name, req.Quantity, len(serials)))
	return resp, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	patch, err := s.productFromRequest(actor, domain.ProductCreateRequest{
		Name:          req.Name,
		SKU:           req.SKU,
		Barcode:       req.Barcode,
		Unit:          req.Unit,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		Currency:      req.Currency,
		MinStockLevel: req.MinStockLevel,
		Category:      req.Category,
	})
	if err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.GetProductForUpdate(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		updated = *existing
		updated.Name = patch.Name
		updated.SKU = patch.SKU
		updated.Barcode = patch.Barcode
		updated.Unit = patch.Unit
		updated.PurchasePrice = patch.PurchasePrice
		updated.SalePrice = patch.SalePrice
		updated.Currency = patch.Currency
		updated.MinStockLevel = patch.MinStockLevel
		updated.Category = patch.Category
		updated.UpdatedAt = s.now()
		return tx.UpdateProduct(ctx, updated)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", id, fmt.Sprintf("name=%s,sale_price=%s", updated.Name, updated.SalePrice.StringFixed(2)))
	return updated, nil
}

// DeleteProduct refuses while movements or serials still point at the product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProductForUpdate(ctx, actor.UserID, id); err != nil {
			return err
		}
		refs, err := tx.CountProductReferences(ctx, actor.UserID, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: product has %d movements or serials", store.ErrReferenced, refs)
		}
		return tx.DeleteProduct(ctx, actor.UserID, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) productFromRequest(actor domain.Actor, req domain.ProductCreateRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, invalid("product name is required")
	}
	if req.PurchasePrice.IsNegative() || req.SalePrice.IsNegative() {
		return domain.Product{}, invalid("prices must not be negative")
	}
	if req.MinStockLevel < 0 {
		return domain.Product{}, invalid("min stock level must not be negative")
	}
	cur, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	return domain.Product{
		ID:            xid.New("prd"),
		UserID:        actor.UserID,
		Name:          name,
		SKU:           strings.ToUpper(strings.TrimSpace(req.SKU)),
		Barcode:       strings.TrimSpace(req.Barcode),
		Unit:          strings.TrimSpace(req.Unit),
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
		Currency:      cur,
		MinStockLevel: req.MinStockLevel,
		Category:      strings.TrimSpace(req.Category),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// normalizeSerialInputs trims serial numbers, rejects blanks and repeats, and
// falls back to the product prices when a serial carries none.
func normalizeSerialInputs(inputs []domain.SerialInput, product domain.Product) ([]domain.SerialInput, error) {
	seen := make(map[string]struct{}, len(inputs))
	result := make([]domain.SerialInput, 0, len(inputs))
	for _, input := range inputs {
		input.SerialNumber = strings.TrimSpace(input.SerialNumber)
		if input.SerialNumber == "" {
			return nil, invalid("serial number is required")
		}
		if _, dup := seen[input.SerialNumber]; dup {
			return nil, fmt.Errorf("%w: %s repeated in request", store.ErrDuplicateSerial, input.SerialNumber)
		}
		seen[input.SerialNumber] = struct{}{}

		if input.PurchasePrice.IsNegative() || input.SalePrice.IsNegative() {
			return nil, invalid("serial prices must not be negative")
		}
		if input.PurchasePrice.Equal(decimal.Zero) {
			input.PurchasePrice = product.PurchasePrice
		}
		if input.SalePrice.Equal(decimal.Zero) {
			input.SalePrice = product.SalePrice
		}
		result = append(result, input)
	}
	return result, nil
}
