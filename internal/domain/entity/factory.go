package entity

import (
	"encoding/json"
	"fmt"
)

// NewFields возвращает пустые поля указанного типа.
func NewFields(kind Kind) (Fields, error) {
	return DecodeFields(kind, nil)
}

// DecodeFields разбирает JSON полей для указанного типа.
func DecodeFields(kind Kind, raw json.RawMessage) (Fields, error) {
	switch kind {
	case KindStore:
		return decodeAs[StoreFields](raw)
	case KindStaff:
		return decodeAs[StaffFields](raw)
	case KindCategory:
		return decodeAs[CategoryFields](raw)
	case KindProduct:
		return decodeAs[ProductFields](raw)
	case KindCartItem:
		return decodeAs[CartItemFields](raw)
	case KindSale:
		return decodeAs[SaleFields](raw)
	case KindSubscription:
		return decodeAs[SubscriptionFields](raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// EncodeFields сериализует поля в JSON.
func EncodeFields(f Fields) (json.RawMessage, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: empty fields", ErrInvalidData)
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s fields: %w", f.Kind(), err)
	}
	return raw, nil
}

func decodeAs[T Fields](raw json.RawMessage) (Fields, error) {
	var f T
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return f, nil
}
