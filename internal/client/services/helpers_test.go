package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/dmitrijs2005/cartkeeper/internal/client/client"
	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
	"github.com/dmitrijs2005/cartkeeper/internal/client/repositories/localstore"
	"github.com/stretchr/testify/require"
)

// ---- storage ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupStore(t *testing.T) localstore.Repository {
	t.Helper()
	return localstore.NewSQLiteRepository(setupDB(t))
}

// flakyStore fails writes while failSet is set and counts reads.
type flakyStore struct {
	localstore.Repository

	mu      sync.Mutex
	failSet error
	gets    int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	return f.Repository.Get(ctx, key)
}

func (f *flakyStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	err := f.failSet
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Repository.Set(ctx, key, value)
}

// ---- identity ----

type fakeIdentity struct {
	mu sync.Mutex
	id Identity
	ok bool
}

func (f *fakeIdentity) Identity(context.Context) (Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.ok
}

func (f *fakeIdentity) set(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id = Identity{UserID: userID, Token: "token-" + userID}
	f.ok = userID != ""
}

// ---- remote api ----

type fakeAPI struct {
	mu sync.Mutex

	remote   []models.RemoteItem
	fetchErr error
	addErr   error
	onFetch  func()
	// addGate, when set, holds every AddItem until it is closed.
	addGate chan struct{}

	nextID     int64
	fetchCalls int
	fetchUsers []string
	adds       []client.AddItemRequest
	removes    []int64
}

var _ client.CartAPI = (*fakeAPI)(nil)

var errRemoteDown = errors.New("remote down")

func (f *fakeAPI) FetchCart(_ context.Context, userID string) ([]models.RemoteItem, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.fetchUsers = append(f.fetchUsers, userID)
	hook := f.onFetch
	items := append([]models.RemoteItem(nil), f.remote...)
	err := f.fetchErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeAPI) AddItem(ctx context.Context, req client.AddItemRequest) (*models.RemoteItem, error) {
	f.mu.Lock()
	gate := f.addGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.adds = append(f.adds, req)
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.nextID++
	item := remoteItem(1000+f.nextID, req.ProductID, float64(req.Quantity))
	return &item, nil
}

func (f *fakeAPI) RemoveItem(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, itemID)
	return nil
}

func (f *fakeAPI) snapshot() (fetches int, adds []client.AddItemRequest, removes []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, append([]client.AddItemRequest(nil), f.adds...), append([]int64(nil), f.removes...)
}

func remoteItem(id int64, productID string, qty float64) models.RemoteItem {
	return models.RemoteItem{
		ID:        models.FlexString(strconv.FormatInt(id, 10)),
		ProductID: models.ProductRef{ID: models.FlexString(productID)},
		Quantity:  models.FlexFloat(qty),
	}
}

// ---- service ----

type fixture struct {
	svc      *cartService
	api      *fakeAPI
	store    localstore.Repository
	identity *fakeIdentity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, setupStore(t))
}

func newFixtureWithStore(t *testing.T, store localstore.Repository) *fixture {
	t.Helper()

	f := &fixture{
		api:      &fakeAPI{},
		store:    store,
		identity: &fakeIdentity{},
	}
	f.svc = NewCartService(f.api, f.store, f.identity, nil, Options{Concurrency: 2}).(*cartService)
	t.Cleanup(f.svc.Close)
	return f
}

func product(id string, price float64) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: price}
}

// quantities maps product id to quantity.
func quantities(items []models.LineItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ProductID()] = it.Quantity
	}
	return out
}

func storedItems(t *testing.T, store localstore.Repository) []models.LineItem {
	t.Helper()
	b, err := store.Get(context.Background(), localstore.KeyCart)
	require.NoError(t, err)
	if b == nil {
		return nil
	}
	items, err := models.DecodeCart(b)
	require.NoError(t, err)
	return items
}
