package entity

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Kind - тип сущности кассовой системы.
type Kind string

const (
	KindStore        Kind = "store"
	KindStaff        Kind = "staff"
	KindProduct      Kind = "product"
	KindCartItem     Kind = "cart_item"
	KindSale         Kind = "sale"
	KindCategory     Kind = "category"
	KindSubscription Kind = "subscription"
)

// SyncOrder - порядок обработки очередей при воспроизведении.
// Родительские сущности идут раньше тех, что на них ссылаются.
var SyncOrder = []Kind{
	KindStore,
	KindSubscription,
	KindCategory,
	KindStaff,
	KindProduct,
	KindCartItem,
	KindSale,
}

// AllKinds возвращает копию списка всех типов в порядке синхронизации.
func AllKinds() []Kind {
	kinds := make([]Kind, len(SyncOrder))
	copy(kinds, SyncOrder)
	return kinds
}

// ParseKind разбирает строковое имя типа.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

func (Kind) Schema(r huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(SyncOrder))
	for _, k := range SyncOrder {
		enum = append(enum, string(k))
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        enum,
		Description: "Тип сущности",
		Examples:    []any{string(KindProduct)},
	}
}

// Validate проверяет, что тип известен.
func (k Kind) Validate() error {
	switch k {
	case KindStore, KindStaff, KindProduct, KindCartItem, KindSale, KindCategory, KindSubscription:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, k)
}

// String возвращает строковое представление типа.
func (k Kind) String() string {
	return string(k)
}

// DisplayName возвращает человекочитаемое название типа.
func (k Kind) DisplayName() string {
	switch k {
	case KindStore:
		return "Магазины"
	case KindStaff:
		return "Сотрудники"
	case KindProduct:
		return "Товары"
	case KindCartItem:
		return "Корзина"
	case KindSale:
		return "Продажи"
	case KindCategory:
		return "Категории"
	case KindSubscription:
		return "Подписки"
	default:
		return "Неизвестный тип"
	}
}
