package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/store"
	"possync/internal/domain/entity"
)

var ErrEmptyCart = errors.New("корзина пуста")

// RollbackError - сервер отклонил оптимистичное изменение,
// локальное состояние возвращено назад.
type RollbackError struct {
	Op   entity.MutationKind
	Kind entity.Kind
	ID   string
	Err  error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("изменение %s %s %s отменено: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// Change - оптимистичное изменение хранилища.
type Change struct {
	Op     entity.MutationKind
	ID     string
	Fields entity.Fields
	Patch  entity.Patch
}

// Optimistic применяет изменения локально и сразу отправляет их,
// если есть сеть.
type Optimistic struct {
	sync *SyncService
	log  *slog.Logger
}

func NewOptimistic(sync *SyncService, log *slog.Logger) *Optimistic {
	return &Optimistic{
		sync: sync,
		log:  log.With("component", "optimistic"),
	}
}

// Apply применяет изменение. Без сети изменение остается в очереди.
// В сети ошибка сервера откатывает изменение и возвращает *RollbackError.
func (o *Optimistic) Apply(ctx context.Context, st *store.EntityStore, ch Change) (string, error) {
	snap := st.Snapshot(ch.ID)

	id, err := o.applyLocal(st, ch)
	if err != nil {
		return "", err
	}

	if !o.sync.IsOnline() {
		o.log.Debug("Нет сети, изменение поставлено в очередь", "kind", st.Kind(), "op", ch.Op, "id", id)
		return id, nil
	}

	m, ok := st.Pending(id)
	if !ok {
		return id, nil
	}

	c, ok := st.Claim(m.ID)
	if !ok {
		// впереди есть другие операции, отправятся по порядку
		o.sync.triggerAsync()
		return id, nil
	}

	out, err := o.sync.execute(ctx, st, c)
	if err == nil {
		if out == outcomeDeferred {
			o.log.Debug("Отправка отложена до создания зависимостей", "kind", st.Kind(), "id", id)
		}
		return id, nil
	}

	if !o.sync.IsOnline() {
		st.Release(c.Mutation.ID)
		o.log.Info("Сеть пропала во время отправки, изменение осталось в очереди",
			"kind", st.Kind(), "id", id, "error", err)
		return id, nil
	}

	st.Rollback(snap, id)
	st.SetError(err)
	o.log.Warn("Сервер отклонил изменение, выполнен откат",
		"kind", st.Kind(), "op", ch.Op, "id", id, "error", err)

	return "", &RollbackError{Op: ch.Op, Kind: st.Kind(), ID: id, Err: err}
}

func (o *Optimistic) applyLocal(st *store.EntityStore, ch Change) (string, error) {
	switch ch.Op {
	case entity.MutationCreate:
		return st.Create(ch.Fields)
	case entity.MutationUpdate:
		var err error
		if ch.Fields != nil {
			err = st.Replace(ch.ID, ch.Fields)
		} else {
			err = st.Update(ch.ID, ch.Patch)
		}
		return ch.ID, err
	case entity.MutationDelete:
		return ch.ID, st.Remove(ch.ID)
	default:
		return "", fmt.Errorf("неизвестный вид операции: %s", ch.Op)
	}
}

// Create создает запись и возвращает ее локальный id.
func (o *Optimistic) Create(ctx context.Context, st *store.EntityStore, fields entity.Fields) (string, error) {
	return o.Apply(ctx, st, Change{Op: entity.MutationCreate, Fields: fields})
}

// Update накладывает патч на запись.
func (o *Optimistic) Update(ctx context.Context, st *store.EntityStore, id string, patch entity.Patch) error {
	_, err := o.Apply(ctx, st, Change{Op: entity.MutationUpdate, ID: id, Patch: patch})
	return err
}

// Remove удаляет запись.
func (o *Optimistic) Remove(ctx context.Context, st *store.EntityStore, id string) error {
	_, err := o.Apply(ctx, st, Change{Op: entity.MutationDelete, ID: id})
	return err
}

// AddToCart добавляет товар в корзину. Если строка с этим товаром
// уже есть, увеличивает ее количество.
func (o *Optimistic) AddToCart(ctx context.Context, cart *store.EntityStore, item entity.CartItemFields) (string, error) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	existing, ok := cart.Find(func(rec entity.Record) bool {
		f, ok := rec.Fields.(entity.CartItemFields)
		return ok && f.ProductID == item.ProductID
	})
	if !ok {
		return o.Create(ctx, cart, item)
	}

	current := existing.Fields.(entity.CartItemFields)
	err := o.Update(ctx, cart, existing.ID, entity.Patch{"quantity": current.Quantity + item.Quantity})
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

// AdjustQuantity меняет количество на delta. Количество ноль и меньше
// удаляет строку корзины.
func (o *Optimistic) AdjustQuantity(ctx context.Context, cart *store.EntityStore, id string, delta int) error {
	rec, ok := cart.Get(id)
	if !ok {
		return entity.ErrNotFound
	}
	current, ok := rec.Fields.(entity.CartItemFields)
	if !ok {
		return fmt.Errorf("%w: %s", entity.ErrKindMismatch, rec.Kind)
	}
	return o.SetQuantity(ctx, cart, id, current.Quantity+delta)
}

// SetQuantity задает количество строки корзины.
func (o *Optimistic) SetQuantity(ctx context.Context, cart *store.EntityStore, id string, quantity int) error {
	if quantity <= 0 {
		return o.Remove(ctx, cart, id)
	}
	return o.Update(ctx, cart, id, entity.Patch{"quantity": quantity})
}

// Checkout оформляет продажу из строк корзины и очищает корзину.
func (o *Optimistic) Checkout(ctx context.Context, cart, sales *store.EntityStore, sale entity.SaleFields) (string, error) {
	lines := cart.All()
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}

	sale.Items = make([]entity.SaleLine, 0, len(lines))
	sale.Total = 0
	for _, rec := range lines {
		item, ok := rec.Fields.(entity.CartItemFields)
		if !ok {
			continue
		}
		sale.Items = append(sale.Items, entity.SaleLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			SPrice:    item.SPrice,
		})
		sale.Total += item.SPrice * float64(item.Quantity)
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}

	id, err := o.Create(ctx, sales, sale)
	if err != nil {
		return "", err
	}

	for _, rec := range lines {
		if err := o.Remove(ctx, cart, rec.ID); err != nil {
			o.log.Warn("Не удалось убрать строку корзины после продажи", "id", rec.ID, "error", err)
		}
	}
	return id, nil
}
