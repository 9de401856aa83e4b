package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
	"github.com/dmitrijs2005/cartkeeper/internal/client/repositories/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddSameProductAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 10), 1))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 10), 2))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 10), 4))

	items := f.svc.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
	assert.False(t, items[0].ID.IsServer())
}

func TestCart_AddNormalizesAndValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.ErrorIs(t, f.svc.AddItem(ctx, models.Product{Name: "nameless"}, 1), ErrInvalidProduct)

	require.NoError(t, f.svc.AddItem(ctx, models.Product{ID: " B ", Price: -3}, 0))
	items := f.svc.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].ProductID())
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, models.DefaultProductName, items[0].Product.Name)
	assert.Equal(t, models.DefaultProductCategory, items[0].Product.Category)
	assert.Zero(t, items[0].Product.Price)
}

func TestCart_UpdateQuantityNonPositiveRemoves(t *testing.T) {
	for _, qty := range []int{0, -1, -50} {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.svc.Init(ctx))

		require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 3))
		require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 1))
		require.NoError(t, f.svc.UpdateQuantity(ctx, "A", qty))

		assert.Equal(t, map[string]int{"B": 1}, quantities(f.svc.Items()), "qty %d", qty)
	}
}

func TestCart_AddNegativeToExistingUpdatesQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 3))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 5))

	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), -2))
	assert.Equal(t, map[string]int{"A": 3, "B": 3}, quantities(f.svc.Items()))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), -3))
	assert.Equal(t, map[string]int{"B": 3}, quantities(f.svc.Items()))

	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 0))
	assert.Equal(t, map[string]int{"B": 3}, quantities(f.svc.Items()))
}

func TestCart_QuantitiesSaturate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), math.MaxInt))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), math.MaxInt))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 1))
	require.NoError(t, f.svc.UpdateQuantity(ctx, "B", math.MaxInt))

	assert.Equal(t, map[string]int{"A": models.MaxQuantity, "B": models.MaxQuantity}, quantities(f.svc.Items()))
}

func TestCart_ConcurrentInitLoadsOnce(t *testing.T) {
	store := &flakyStore{Repository: setupStore(t)}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()
	f.identity.set("u1")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.Init(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.getCount())
	fetches, _, _ := f.api.snapshot()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, StateReady, f.svc.State())
}

func TestCart_UpdateQuantityUnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.UpdateQuantity(ctx, "missing", 5))
	require.NoError(t, f.svc.RemoveItem(ctx, "missing"))
	assert.Empty(t, f.svc.Items())
}

func TestCart_PersistenceRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	f := newFixtureWithStore(t, store)
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 2), 2))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 3), 1))
	require.NoError(t, f.svc.AddItem(ctx, product("C", 4), 5))
	require.NoError(t, f.svc.UpdateQuantity(ctx, "B", 9))
	require.NoError(t, f.svc.RemoveItem(ctx, "C"))

	want := quantities(f.svc.Items())
	assert.Equal(t, want, quantities(storedItems(t, store)))

	reloaded := newFixtureWithStore(t, store)
	require.NoError(t, reloaded.svc.Init(ctx))
	assert.Equal(t, want, quantities(reloaded.svc.Items()))
	assert.Equal(t, f.svc.Items(), reloaded.svc.Items())
}

func TestCart_ClearPersistsEmptyCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 2), 2))
	require.NoError(t, f.svc.ClearCart(ctx))

	assert.Empty(t, f.svc.Items())
	b, err := f.store.Get(ctx, localstore.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestCart_Totals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	assert.Zero(t, f.svc.TotalItems())
	assert.Zero(t, f.svc.TotalPrice())

	require.NoError(t, f.svc.AddItem(ctx, product("A", 10), 2))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 5), 3))

	assert.Equal(t, 5, f.svc.TotalItems())
	assert.InDelta(t, 35.0, f.svc.TotalPrice(), 1e-9)
}

func TestCart_InitDiscardsCorruptedStorage(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, localstore.KeyCart, []byte("{not json")))

	f := newFixtureWithStore(t, store)
	require.NoError(t, f.svc.Init(ctx))

	assert.Equal(t, StateReady, f.svc.State())
	assert.Empty(t, f.svc.Items())

	b, err := store.Get(ctx, localstore.KeyCart)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestCart_InitRepairsDuplicates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	raw := `[{"id":1,"product":{"id":"A"},"quantity":2},{"id":"x","product":{"id":"A"},"quantity":5},{"id":2,"product":{"id":"B"},"quantity":0}]`
	require.NoError(t, store.Set(ctx, localstore.KeyCart, []byte(raw)))

	f := newFixtureWithStore(t, store)
	require.NoError(t, f.svc.Init(ctx))

	assert.Equal(t, map[string]int{"A": 2}, quantities(f.svc.Items()))
}

func TestCart_MutationsBeforeInit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, f.svc.State())
	require.ErrorIs(t, f.svc.AddItem(ctx, product("A", 1), 1), ErrNotInitialized)
	require.ErrorIs(t, f.svc.RemoveItem(ctx, "A"), ErrNotInitialized)
	require.ErrorIs(t, f.svc.UpdateQuantity(ctx, "A", 2), ErrNotInitialized)
	require.ErrorIs(t, f.svc.ClearCart(ctx), ErrNotInitialized)
	require.NoError(t, f.svc.IdentityChanged(ctx))
}

func TestCart_PersistFailureKeepsMutation(t *testing.T) {
	store := &flakyStore{Repository: setupStore(t)}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	store.failSet = errors.New("disk full")
	err := f.svc.AddItem(ctx, product("A", 1), 2)
	require.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, map[string]int{"A": 2}, quantities(f.svc.Items()))
}

// ---- reconciliation ----

func TestSync_MaxQuantityWins(t *testing.T) {
	tests := []struct {
		name   string
		local  int
		remote float64
		want   int
	}{
		{"local greater", 3, 1, 3},
		{"remote greater", 1, 3, 3},
		{"equal", 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.svc.Init(ctx))
			require.NoError(t, f.svc.AddItem(ctx, product("A", 1), tt.local))

			f.api.remote = []models.RemoteItem{remoteItem(7, "A", tt.remote)}
			f.identity.set("u1")
			require.NoError(t, f.svc.Sync(ctx))
			f.svc.Wait()

			items := f.svc.Items()
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].Quantity)

			id, ok := items[0].ID.Server()
			require.True(t, ok)
			assert.Equal(t, int64(7), id)

			_, adds, _ := f.api.snapshot()
			assert.Empty(t, adds, "items present remotely are not pushed")
		})
	}
}

func TestSync_UnionPushesLocalOnlyItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))

	f.api.remote = []models.RemoteItem{remoteItem(8, "B", 2)}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	assert.Equal(t, map[string]int{"A": 1, "B": 2}, quantities(f.svc.Items()))
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, quantities(storedItems(t, f.store)))

	_, adds, _ := f.api.snapshot()
	require.Len(t, adds, 1)
	assert.Equal(t, "A", adds[0].ProductID)
	assert.Equal(t, "u1", adds[0].UserID)
	assert.Equal(t, 1, adds[0].Quantity)

	for _, it := range f.svc.Items() {
		assert.True(t, it.ID.IsServer(), "item %s has server id after sync", it.ProductID())
	}
}

func TestSync_FailedPushKeepsItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 2))

	f.api.addErr = errRemoteDown
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	items := f.svc.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.False(t, items[0].ID.IsServer())
}

func TestSync_FetchFailureLeavesLocalUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 3), 2))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 1))

	before := f.svc.Items()
	storedBefore, err := f.store.Get(ctx, localstore.KeyCart)
	require.NoError(t, err)

	f.api.fetchErr = errRemoteDown
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	assert.Equal(t, before, f.svc.Items())
	storedAfter, err := f.store.Get(ctx, localstore.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, storedBefore, storedAfter)
	assert.Equal(t, StateReady, f.svc.State())
}

func TestSync_WithoutIdentityDoesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.Sync(ctx))
	fetches, _, _ := f.api.snapshot()
	assert.Zero(t, fetches)
}

func TestSync_StateIsSyncingDuringFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	var during State
	f.api.onFetch = func() { during = f.svc.State() }
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	assert.Equal(t, StateSyncing, during)
	assert.Equal(t, StateReady, f.svc.State())
}

func TestSync_SkipsUnusableRemoteItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.remote = []models.RemoteItem{
		remoteItem(1, "", 2),
		remoteItem(2, "A", 0),
		remoteItem(3, "B", 1),
	}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	assert.Equal(t, map[string]int{"B": 1}, quantities(f.svc.Items()))
}

func TestInit_SyncsWhenIdentityPresent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identity.set("u1")
	f.api.remote = []models.RemoteItem{remoteItem(5, "A", 2)}
	require.NoError(t, f.svc.Init(ctx))

	assert.Equal(t, map[string]int{"A": 2}, quantities(f.svc.Items()))
	fetches, _, _ := f.api.snapshot()
	assert.Equal(t, 1, fetches)
}

func TestIdentityChanged_SyncsOncePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.IdentityChanged(ctx))
	fetches, _, _ := f.api.snapshot()
	assert.Zero(t, fetches, "no identity, no sync")

	f.identity.set("u1")
	require.NoError(t, f.svc.IdentityChanged(ctx))
	require.NoError(t, f.svc.IdentityChanged(ctx))
	fetches, _, _ = f.api.snapshot()
	assert.Equal(t, 1, fetches)

	f.identity.set("u2")
	require.NoError(t, f.svc.IdentityChanged(ctx))
	require.NoError(t, f.svc.IdentityChanged(ctx))
	fetches, _, _ = f.api.snapshot()
	assert.Equal(t, 2, fetches)

	// Signing out and back in as the same user reconciles again.
	f.identity.set("")
	require.NoError(t, f.svc.IdentityChanged(ctx))
	f.identity.set("u2")
	require.NoError(t, f.svc.IdentityChanged(ctx))
	fetches, _, _ = f.api.snapshot()
	assert.Equal(t, 3, fetches)

	assert.Equal(t, []string{"u1", "u2", "u2"}, f.api.fetchUsers)
}

func TestIdentityChanged_RetriesAfterFailedFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.fetchErr = errRemoteDown
	f.identity.set("u1")
	require.NoError(t, f.svc.IdentityChanged(ctx))

	f.api.mu.Lock()
	f.api.fetchErr = nil
	f.api.mu.Unlock()
	require.NoError(t, f.svc.IdentityChanged(ctx))

	fetches, _, _ := f.api.snapshot()
	assert.Equal(t, 2, fetches)
}

// ---- best-effort remote writes ----

func TestAddItem_OnlineAppliesServerID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	f.identity.set("u1")

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 2))
	f.svc.Wait()

	items := f.svc.Items()
	require.Len(t, items, 1)
	id, ok := items[0].ID.Server()
	require.True(t, ok)
	assert.Equal(t, int64(1001), id)

	stored := storedItems(t, f.store)
	require.Len(t, stored, 1)
	assert.Equal(t, items[0].ID, stored[0].ID)

	_, adds, _ := f.api.snapshot()
	require.Len(t, adds, 1)
	assert.Equal(t, "A", adds[0].ProductID)
}

func TestAddItem_OfflineStaysLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	f.svc.Wait()

	_, adds, _ := f.api.snapshot()
	assert.Empty(t, adds)
}

func TestAddItem_RemoteFailureKeepsLocalItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	f.identity.set("u1")
	f.api.addErr = errRemoteDown

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	f.svc.Wait()

	items := f.svc.Items()
	require.Len(t, items, 1)
	assert.False(t, items[0].ID.IsServer())
}

func TestRemoveItem_WhileAddInFlightRemovesOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	f.identity.set("u1")

	gate := make(chan struct{})
	f.api.addGate = gate

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	require.NoError(t, f.svc.RemoveItem(ctx, "A"))

	_, _, removes := f.api.snapshot()
	assert.Empty(t, removes, "a temporary id is never sent to the api")

	close(gate)
	f.svc.Wait()

	_, adds, removes := f.api.snapshot()
	require.Len(t, adds, 1)
	assert.Equal(t, []int64{1001}, removes)
	assert.Empty(t, f.svc.Items())
}

func TestRemoveItem_OnlineRemovesServerItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.remote = []models.RemoteItem{remoteItem(42, "A", 1)}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	require.NoError(t, f.svc.RemoveItem(ctx, "A"))
	f.svc.Wait()

	_, _, removes := f.api.snapshot()
	assert.Equal(t, []int64{42}, removes)
}

func TestRemoveItem_OfflineSkipsRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.remote = []models.RemoteItem{remoteItem(42, "A", 1)}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))
	f.identity.set("")

	require.NoError(t, f.svc.RemoveItem(ctx, "A"))
	f.svc.Wait()

	_, _, removes := f.api.snapshot()
	assert.Empty(t, removes)
}

func TestClearCart_RemovesServerItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.remote = []models.RemoteItem{remoteItem(1, "A", 1), remoteItem(2, "B", 1), remoteItem(3, "C", 1)}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	f.api.addErr = errRemoteDown
	require.NoError(t, f.svc.AddItem(ctx, product("D", 1), 1))
	f.svc.Wait()

	require.NoError(t, f.svc.ClearCart(ctx))
	f.svc.Wait()

	assert.Empty(t, f.svc.Items())
	_, _, removes := f.api.snapshot()
	assert.ElementsMatch(t, []int64{1, 2, 3}, removes)
}

func TestUpdateQuantity_NoRemoteCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	f.api.remote = []models.RemoteItem{remoteItem(1, "A", 1)}
	f.identity.set("u1")
	require.NoError(t, f.svc.Sync(ctx))

	require.NoError(t, f.svc.UpdateQuantity(ctx, "A", 5))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	f.svc.Wait()

	_, adds, removes := f.api.snapshot()
	assert.Empty(t, adds)
	assert.Empty(t, removes)
	assert.Equal(t, map[string]int{"A": 6}, quantities(f.svc.Items()))
}

func TestClose_CancelsPendingRemoteCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))
	f.identity.set("u1")
	f.api.addGate = make(chan struct{})

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	f.svc.Close()

	items := f.svc.Items()
	require.Len(t, items, 1)
	assert.False(t, items[0].ID.IsServer())

	// After Close mutations stay local.
	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 1))
	f.svc.Wait()
	_, adds, _ := f.api.snapshot()
	assert.Empty(t, adds)
}

// ---- subscriptions ----

func TestSubscribe_NotifiesCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got [][]models.LineItem
	unsubscribe := f.svc.Subscribe(func(items []models.LineItem) {
		got = append(got, items)
		if len(items) > 0 {
			items[0].Quantity = 999
		}
	})

	require.NoError(t, f.svc.Init(ctx))
	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 1))
	require.NoError(t, f.svc.UpdateQuantity(ctx, "A", 3))

	require.Len(t, got, 3)
	assert.Empty(t, got[0])
	assert.Equal(t, map[string]int{"A": 3}, quantities(f.svc.Items()), "listeners cannot modify the cart")

	unsubscribe()
	unsubscribe()
	require.NoError(t, f.svc.ClearCart(ctx))
	assert.Len(t, got, 3)
}

func TestSubscribe_ListenerMayReadService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Init(ctx))

	var totals []int
	f.svc.Subscribe(func([]models.LineItem) {
		totals = append(totals, f.svc.TotalItems())
	})

	require.NoError(t, f.svc.AddItem(ctx, product("A", 1), 2))
	require.NoError(t, f.svc.AddItem(ctx, product("B", 1), 1))
	assert.Equal(t, []int{2, 3}, totals)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "syncing", StateSyncing.String())
	assert.Equal(t, "State(9)", State(9).String())
}
