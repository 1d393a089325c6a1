package domain

import "errors"

var (
	ErrInvalidQuantity = errors.New("invalid movement quantity")
	ErrNegativeStock   = errors.New("movement would make stock negative")
)

// ComputeMovement applies a movement of the given type to previous and returns
// the quantity to log on the movement row and the resulting stock level.
// For adjustments quantity is the target level, not a delta.
func ComputeMovement(previous int, typ MovementType, quantity int, allowNegative bool) (logged int, next int, err error) {
	switch typ {
	case MovementIn:
		if quantity < 1 {
			return 0, 0, ErrInvalidQuantity
		}
		logged, next = quantity, previous+quantity
	case MovementOut:
		if quantity < 1 {
			return 0, 0, ErrInvalidQuantity
		}
		logged, next = quantity, previous-quantity
	case MovementAdjustment:
		if quantity < 0 {
			return 0, 0, ErrInvalidQuantity
		}
		logged, next = quantity-previous, quantity
		if logged < 0 {
			logged = -logged
		}
	default:
		return 0, 0, ErrInvalidQuantity
	}

	if next < 0 && !allowNegative {
		return 0, 0, ErrNegativeStock
	}
	return logged, next, nil
}

// Opposite returns the direction that undoes t. Adjustments have no opposite.
func (t MovementType) Opposite() MovementType {
	switch t {
	case MovementIn:
		return MovementOut
	case MovementOut:
		return MovementIn
	default:
		return t
	}
}
