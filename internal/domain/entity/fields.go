package entity

import (
	"errors"
	"time"
)

// Fields - типизированные поля записи конкретного типа.
// Значения неизменяемы: изменения создают новое значение.
type Fields interface {
	Kind() Kind
	Validate() error
	// ResolveRefs возвращает копию с переписанными внешними ключами.
	ResolveRefs(resolve func(id string) string) Fields
}

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleCashier    = "cashier"
)

// StoreFields - торговая точка.
type StoreFields struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
}

func (StoreFields) Kind() Kind { return KindStore }

func (f StoreFields) Validate() error {
	if f.Name == "" {
		return errors.New("store name is required")
	}
	return nil
}

func (f StoreFields) ResolveRefs(func(string) string) Fields { return f }

// StaffFields - сотрудник магазина.
type StaffFields struct {
	Name    string   `json:"name"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	StoreID string   `json:"storeId,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

func (StaffFields) Kind() Kind { return KindStaff }

func (f StaffFields) Validate() error {
	if f.Name == "" {
		return errors.New("staff name is required")
	}
	return nil
}

func (f StaffFields) ResolveRefs(resolve func(string) string) Fields {
	f.StoreID = resolveRef(resolve, f.StoreID)
	return f
}

// HasRole проверяет наличие роли у сотрудника.
func (f StaffFields) HasRole(role string) bool {
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CategoryFields - категория товаров.
type CategoryFields struct {
	Name    string `json:"name"`
	StoreID string `json:"storeId,omitempty"`
}

func (CategoryFields) Kind() Kind { return KindCategory }

func (f CategoryFields) Validate() error {
	if f.Name == "" {
		return errors.New("category name is required")
	}
	return nil
}

func (f CategoryFields) ResolveRefs(resolve func(string) string) Fields {
	f.StoreID = resolveRef(resolve, f.StoreID)
	return f
}

// ProductFields - товар каталога.
type ProductFields struct {
	Name       string  `json:"name"`
	Barcode    string  `json:"barcode,omitempty"`
	Price      float64 `json:"price"`
	SPrice     float64 `json:"sprice"`
	Stock      int     `json:"stock"`
	CategoryID string  `json:"categoryId,omitempty"`
	StoreID    string  `json:"storeId,omitempty"`
}

func (ProductFields) Kind() Kind { return KindProduct }

func (f ProductFields) Validate() error {
	if f.Name == "" {
		return errors.New("product name is required")
	}
	if f.Price < 0 || f.SPrice < 0 {
		return errors.New("product price must not be negative")
	}
	return nil
}

func (f ProductFields) ResolveRefs(resolve func(string) string) Fields {
	f.CategoryID = resolveRef(resolve, f.CategoryID)
	f.StoreID = resolveRef(resolve, f.StoreID)
	return f
}

// CartItemFields - строка текущей корзины.
type CartItemFields struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	SPrice    float64 `json:"sprice"`
	StaffID   string  `json:"staffId,omitempty"`
	StoreID   string  `json:"storeId,omitempty"`
}

func (CartItemFields) Kind() Kind { return KindCartItem }

func (f CartItemFields) Validate() error {
	if f.ProductID == "" {
		return errors.New("cart item product is required")
	}
	if f.Quantity <= 0 {
		return errors.New("cart item quantity must be positive")
	}
	return nil
}

func (f CartItemFields) ResolveRefs(resolve func(string) string) Fields {
	f.ProductID = resolveRef(resolve, f.ProductID)
	f.StaffID = resolveRef(resolve, f.StaffID)
	f.StoreID = resolveRef(resolve, f.StoreID)
	return f
}

// SaleLine - позиция чека.
type SaleLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	SPrice    float64 `json:"sprice"`
}

// SaleFields - завершенная продажа.
type SaleFields struct {
	StoreID       string     `json:"storeId,omitempty"`
	StaffID       string     `json:"staffId,omitempty"`
	Items         []SaleLine `json:"items"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	SoldAt        time.Time  `json:"soldAt"`
}

func (SaleFields) Kind() Kind { return KindSale }

func (f SaleFields) Validate() error {
	if len(f.Items) == 0 {
		return errors.New("sale must contain at least one item")
	}
	return nil
}

func (f SaleFields) ResolveRefs(resolve func(string) string) Fields {
	f.StoreID = resolveRef(resolve, f.StoreID)
	f.StaffID = resolveRef(resolve, f.StaffID)

	items := make([]SaleLine, len(f.Items))
	for i, line := range f.Items {
		line.ProductID = resolveRef(resolve, line.ProductID)
		items[i] = line
	}
	f.Items = items
	return f
}

// SubscriptionFields - подписка владельца на сервис.
type SubscriptionFields struct {
	OwnerID   string    `json:"ownerId,omitempty"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (SubscriptionFields) Kind() Kind { return KindSubscription }

func (f SubscriptionFields) Validate() error {
	if f.Plan == "" {
		return errors.New("subscription plan is required")
	}
	return nil
}

func (f SubscriptionFields) ResolveRefs(func(string) string) Fields { return f }

func resolveRef(resolve func(string) string, id string) string {
	if id == "" || resolve == nil {
		return id
	}
	return resolve(id)
}
