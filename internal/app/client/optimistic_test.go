package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"possync/internal/domain/entity"
)

func TestOptimistic_CreateOnlineReconciles(t *testing.T) {
	h := newHarness(t, online)
	categories := h.store(entity.KindCategory)

	id, err := h.opt.Create(context.Background(), categories, entity.CategoryFields{Name: "Напитки"})
	require.NoError(t, err)
	assert.Equal(t, "local_1000", id)

	rec, ok := categories.Get(id)
	require.True(t, ok)
	assert.Equal(t, "srv_42", rec.ID)
	assert.Equal(t, entity.StatusSynced, rec.Status)
	assert.Empty(t, categories.Queue())
}

func TestOptimistic_RejectedCreateRollsBack(t *testing.T) {
	h := newHarness(t, online)
	products := h.store(entity.KindProduct)

	h.remote.errFor = func(op string, kind entity.Kind, _ string) error {
		return entity.NewStatusError(422, "barcode already taken")
	}

	id, err := h.opt.Create(context.Background(), products, entity.ProductFields{Name: "Кефир", Price: 55})
	require.Error(t, err)
	assert.Empty(t, id)

	var rbErr *RollbackError
	require.True(t, errors.As(err, &rbErr))
	assert.Equal(t, entity.MutationCreate, rbErr.Op)
	assert.Equal(t, entity.KindProduct, rbErr.Kind)

	assert.Empty(t, products.All())
	assert.Empty(t, products.Queue())
	assert.Contains(t, products.Stats().Error, "barcode already taken")
}

func TestOptimistic_RejectedUpdateRestoresPrevious(t *testing.T) {
	h := newHarness(t, online)
	products := h.store(entity.KindProduct)

	h.remote.seed(entity.KindProduct, "srv_1", entity.ProductFields{Name: "Хлеб", Price: 30})
	require.NoError(t, h.sync.FetchInitialData(context.Background()))

	h.remote.errFor = func(op string, kind entity.Kind, _ string) error {
		if op == "UPDATE" {
			return entity.NewStatusError(409, "conflict")
		}
		return nil
	}

	err := h.opt.Update(context.Background(), products, "srv_1", entity.Patch{"price": 99})
	var rbErr *RollbackError
	require.True(t, errors.As(err, &rbErr))

	rec, ok := products.Get("srv_1")
	require.True(t, ok)
	assert.Equal(t, 30.0, rec.Fields.(entity.ProductFields).Price)
	assert.Equal(t, entity.StatusSynced, rec.Status)
	assert.Empty(t, products.Queue())
}

func TestOptimistic_OfflineQueuesAndReplays(t *testing.T) {
	h := newHarness(t, offline)
	ctx := context.Background()

	productID, err := h.opt.Create(ctx, h.store(entity.KindProduct), entity.ProductFields{Name: "Сок", Price: 90, SPrice: 120})
	require.NoError(t, err)
	assert.Equal(t, "local_1000", productID)

	cartID, err := h.opt.AddToCart(ctx, h.store(entity.KindCartItem), entity.CartItemFields{ProductID: productID, Quantity: 1, SPrice: 120})
	require.NoError(t, err)
	assert.Equal(t, "local_1001", cartID)

	rec, ok := h.store(entity.KindProduct).Get(productID)
	require.True(t, ok)
	assert.Equal(t, entity.StatusPendingCreate, rec.Status)
	assert.Empty(t, h.remote.Calls())

	h.monitor.Set(online)
	result, err := h.sync.TriggerSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)

	rec, ok = h.store(entity.KindProduct).Get(productID)
	require.True(t, ok)
	assert.Equal(t, "srv_42", rec.ID)

	item, ok := h.store(entity.KindCartItem).Get(cartID)
	require.True(t, ok)
	assert.Equal(t, "srv_43", item.ID)
	assert.Contains(t, string(h.remote.Body("srv_43")), `"productId":"srv_42"`)
}

func TestOptimistic_ConnectionLostDuringCallKeepsMutation(t *testing.T) {
	h := newHarness(t, online)
	categories := h.store(entity.KindCategory)

	h.remote.errFor = func(op string, kind entity.Kind, _ string) error {
		h.monitor.Set(offline)
		return &entity.RemoteCallError{Message: "connection reset", Transient: true}
	}

	id, err := h.opt.Create(context.Background(), categories, entity.CategoryFields{Name: "Снеки"})
	require.NoError(t, err)

	rec, ok := categories.Get(id)
	require.True(t, ok)
	assert.Equal(t, entity.StatusPendingCreate, rec.Status)

	queue := categories.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, 0, queue[0].Attempts)

	// операция не осталась взятой
	_, claimed := categories.ClaimNext()
	assert.True(t, claimed)
}

func TestOptimistic_QuantityToZeroSendsSingleDelete(t *testing.T) {
	h := newHarness(t, online)
	ctx := context.Background()
	cart := h.store(entity.KindCartItem)

	id, err := h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_7", Quantity: 1, SPrice: 50})
	require.NoError(t, err)

	require.NoError(t, h.opt.AdjustQuantity(ctx, cart, id, -1))

	assert.Equal(t, []string{"CREATE cart_item", "DELETE cart_item srv_42"}, h.remote.Calls())
	assert.Empty(t, cart.All())
	assert.Empty(t, cart.Queue())
}

func TestOptimistic_QuantityToZeroOfflineLeavesNothing(t *testing.T) {
	h := newHarness(t, offline)
	ctx := context.Background()
	cart := h.store(entity.KindCartItem)

	id, err := h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_7", Quantity: 2, SPrice: 50})
	require.NoError(t, err)
	require.NoError(t, h.opt.AdjustQuantity(ctx, cart, id, -1))
	require.NoError(t, h.opt.SetQuantity(ctx, cart, id, 0))

	assert.Empty(t, cart.All())
	assert.Empty(t, cart.Queue())

	h.monitor.Set(online)
	_, err = h.sync.TriggerSync(ctx)
	require.NoError(t, err)
	assert.Empty(t, h.remote.Calls())
}

func TestOptimistic_AddToCartMergesLines(t *testing.T) {
	h := newHarness(t, offline)
	ctx := context.Background()
	cart := h.store(entity.KindCartItem)

	first, err := h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_7", Quantity: 1, SPrice: 50})
	require.NoError(t, err)
	second, err := h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_7", SPrice: 50})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	items := cart.All()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Fields.(entity.CartItemFields).Quantity)

	queue := cart.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, entity.MutationCreate, queue[0].Kind)
}

func TestOptimistic_AdjustMissingLine(t *testing.T) {
	h := newHarness(t, offline)

	err := h.opt.AdjustQuantity(context.Background(), h.store(entity.KindCartItem), "local_9999", 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestOptimistic_Checkout(t *testing.T) {
	h := newHarness(t, offline)
	ctx := context.Background()
	cart := h.store(entity.KindCartItem)
	sales := h.store(entity.KindSale)

	_, err := h.opt.Checkout(ctx, cart, sales, entity.SaleFields{})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_1", Quantity: 2, SPrice: 50})
	require.NoError(t, err)
	_, err = h.opt.AddToCart(ctx, cart, entity.CartItemFields{ProductID: "srv_2", Quantity: 1, SPrice: 100})
	require.NoError(t, err)

	saleID, err := h.opt.Checkout(ctx, cart, sales, entity.SaleFields{PaymentMethod: "cash"})
	require.NoError(t, err)

	rec, ok := sales.Get(saleID)
	require.True(t, ok)
	sale := rec.Fields.(entity.SaleFields)
	assert.Len(t, sale.Items, 2)
	assert.Equal(t, 200.0, sale.Total)
	assert.Equal(t, "cash", sale.PaymentMethod)
	assert.False(t, sale.SoldAt.IsZero())

	assert.Empty(t, cart.All())
	assert.Empty(t, cart.Queue())
	assert.Len(t, sales.Queue(), 1)
}
