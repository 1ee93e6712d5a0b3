package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Validate(t *testing.T) {
	for _, k := range AllKinds() {
		assert.NoError(t, k.Validate(), k)
	}

	_, err := ParseKind("invoice")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPatch_Apply(t *testing.T) {
	item := CartItemFields{ProductID: "p1", Quantity: 2, SPrice: 9.5, StoreID: "st1"}

	out, err := Patch{"quantity": 5}.Apply(item)

	require.NoError(t, err)
	patched := out.(CartItemFields)
	assert.Equal(t, 5, patched.Quantity)
	assert.Equal(t, "p1", patched.ProductID)
	assert.Equal(t, 9.5, patched.SPrice)
	assert.Equal(t, 2, item.Quantity, "source value must not change")
}

func TestPatch_Apply_IgnoresUnknownKeys(t *testing.T) {
	out, err := Patch{"colour": "red", "name": "Tea"}.Apply(ProductFields{Name: "Coffee", Price: 3})

	require.NoError(t, err)
	assert.Equal(t, ProductFields{Name: "Tea", Price: 3}, out)
}

func TestResolveRefs(t *testing.T) {
	aliases := NewAliasTable()
	aliases.Put("local_1000", "srv_42")

	sale := SaleFields{
		StoreID: "local_1000",
		Items:   []SaleLine{{ProductID: "local_1000", Quantity: 1}, {ProductID: "srv_1", Quantity: 2}},
	}

	out := sale.ResolveRefs(aliases.Resolve).(SaleFields)

	assert.Equal(t, "srv_42", out.StoreID)
	assert.Equal(t, "srv_42", out.Items[0].ProductID)
	assert.Equal(t, "srv_1", out.Items[1].ProductID)
	assert.Equal(t, "local_1000", sale.Items[0].ProductID, "source slice must not change")
}

func TestRecord_JSON(t *testing.T) {
	rec := Record{
		ID:            "local_1000",
		Kind:          KindStaff,
		Fields:        StaffFields{Name: "Ann", Roles: []string{RoleSuperAdmin}},
		Status:        StatusPendingCreate,
		LastChangedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestIDGenerator(t *testing.T) {
	g := NewIDGenerator(DefaultIDStart)

	assert.Equal(t, "local_1000", g.Next())
	assert.Equal(t, "local_1001", g.Next())

	g.Observe("local_1500")
	assert.Equal(t, "local_1501", g.Next())

	g.Observe("local_10")
	g.Observe("srv_9999")
	assert.Equal(t, "local_1502", g.Next())
}

func TestIDGenerator_Concurrent(t *testing.T) {
	g := NewIDGenerator(0)
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}

func TestAliasTable(t *testing.T) {
	table := NewAliasTable()
	table.Put("local_1", "srv_1")

	assert.Equal(t, "srv_1", table.Resolve("local_1"))
	assert.Equal(t, "local_2", table.Resolve("local_2"))
	assert.Equal(t, "srv_9", table.Resolve("srv_9"))

	raw, err := json.Marshal(table)
	require.NoError(t, err)

	restored := NewAliasTable()
	require.NoError(t, restored.Load(raw))
	assert.Equal(t, "srv_1", restored.Resolve("local_1"))
	assert.Equal(t, 1, restored.Len())
	assert.Equal(t, []string{"local_1"}, restored.Keys())
}

func TestIDGenerator_ObserveAliasKeys(t *testing.T) {
	table := NewAliasTable()
	table.Put("local_1000", "srv_1")
	table.Put("local_1004", "srv_2")

	g := NewIDGenerator(DefaultIDStart)
	for _, id := range table.Keys() {
		g.Observe(id)
	}
	assert.Equal(t, "local_1005", g.Next())
}

func TestSoleSuperAdminGuard(t *testing.T) {
	admin := Record{ID: "s1", Kind: KindStaff, Fields: StaffFields{Name: "A", Roles: []string{RoleSuperAdmin}}}
	cashier := Record{ID: "s2", Kind: KindStaff, Fields: StaffFields{Name: "B", Roles: []string{RoleCashier}}}
	deletedAdmin := Record{ID: "s3", Kind: KindStaff, Deleted: true, Fields: StaffFields{Name: "C", Roles: []string{RoleSuperAdmin}}}
	otherAdmin := Record{ID: "s4", Kind: KindStaff, Fields: StaffFields{Name: "D", Roles: []string{RoleSuperAdmin}}}

	err := SoleSuperAdminGuard(admin, []Record{admin, cashier, deletedAdmin})
	assert.ErrorIs(t, err, ErrProtected)

	assert.NoError(t, SoleSuperAdminGuard(cashier, []Record{admin, cashier}))
	assert.NoError(t, SoleSuperAdminGuard(admin, []Record{admin, otherAdmin}))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewStatusError(http.StatusServiceUnavailable, "down")))
	assert.True(t, IsTransient(NewStatusError(http.StatusTooManyRequests, "slow down")))
	assert.False(t, IsTransient(NewStatusError(http.StatusUnprocessableEntity, "bad")))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &RemoteCallError{Message: "reset", Transient: true})))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))

	assert.True(t, IsRemoteNotFound(NewStatusError(http.StatusNotFound, "gone")))
}
