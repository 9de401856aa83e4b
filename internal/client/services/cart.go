package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cartkeeper/internal/client/client"
	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
	"github.com/dmitrijs2005/cartkeeper/internal/client/repositories/localstore"
	"github.com/dmitrijs2005/cartkeeper/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidProduct = errors.New("product id is required")
	ErrPersist        = errors.New("local storage failure")
	ErrNotInitialized = errors.New("cart is not initialized")
)

const defaultConcurrency = 4

// State is the lifecycle state of a cart.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateSyncing:
		return "syncing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Listener receives the cart after every change. The slice is the
// listener's own copy.
type Listener func(items []models.LineItem)

type Options struct {
	// Concurrency bounds parallel remote calls of one sync or clear.
	Concurrency int
}

// CartService is the local-first cart. The local copy is authoritative:
// every mutation is applied in memory and persisted before it returns,
// while remote calls are best effort and never fail a mutation.
//
// Contract:
//   - Init loads the persisted cart and syncs if an identity is present.
//   - AddItem / RemoveItem / UpdateQuantity / ClearCart mutate the cart;
//     only local storage errors (wrapping ErrPersist) are returned.
//   - Sync merges the remote cart into the local one (see MergeCarts).
//   - IdentityChanged syncs once per distinct user id.
//   - Wait blocks until background remote calls finish; Close cancels them.
type CartService interface {
	Init(ctx context.Context) error
	AddItem(ctx context.Context, product models.Product, quantity int) error
	RemoveItem(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context) error

	Items() []models.LineItem
	TotalItems() int
	TotalPrice() float64
	State() State

	Sync(ctx context.Context) error
	IdentityChanged(ctx context.Context) error
	Subscribe(fn Listener) (unsubscribe func())

	Wait()
	Close()
}

type cartService struct {
	api      client.CartAPI
	store    localstore.Repository
	identity IdentitySource
	logger   logging.Logger
	limit    int

	// initMu serializes Init; syncMu serializes reconciliations.
	initMu sync.Mutex
	syncMu sync.Mutex

	mu         sync.Mutex
	items      []models.LineItem
	state      State
	lastSynced string
	listeners  map[int]Listener
	nextID     int
	closed     bool

	wg     sync.WaitGroup
	bg     context.Context
	cancel context.CancelFunc
}

func NewCartService(api client.CartAPI, store localstore.Repository, identity IdentitySource, logger logging.Logger, opts Options) CartService {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	bg, cancel := context.WithCancel(context.Background())
	return &cartService{
		api:       api,
		store:     store,
		identity:  identity,
		logger:    logger.With("module", "cart"),
		limit:     opts.Concurrency,
		listeners: make(map[int]Listener),
		bg:        bg,
		cancel:    cancel,
	}
}

// Init loads the persisted cart. A corrupted value is discarded and the
// cart starts empty. Calling Init again, concurrently or later, is a no-op.
func (s *cartService) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	items, loadErr := s.load(ctx)

	s.mu.Lock()
	s.items = items
	s.state = StateReady
	snap := models.CloneItems(s.items)
	s.mu.Unlock()

	s.logger.Debug(ctx, "cart loaded", "items", len(snap))
	s.notify(snap)

	if loadErr != nil {
		return loadErr
	}
	return s.IdentityChanged(ctx)
}

func (s *cartService) load(ctx context.Context) ([]models.LineItem, error) {
	b, err := s.store.Get(ctx, localstore.KeyCart)
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %w", ErrPersist, err)
	}
	if b == nil {
		return nil, nil
	}

	items, err := models.DecodeCart(b)
	if err != nil {
		s.logger.Warn(ctx, "discarding corrupted cart", "err", err)
		if err := s.store.Delete(ctx, localstore.KeyCart); err != nil {
			s.logger.Warn(ctx, "delete corrupted cart failed", "err", err)
		}
		return nil, nil
	}
	return items, nil
}

// persistLocked writes the cart and returns a snapshot for listeners.
// s.mu must be held.
func (s *cartService) persistLocked(ctx context.Context) ([]models.LineItem, error) {
	snap := models.CloneItems(s.items)

	b, err := models.EncodeCart(snap)
	if err != nil {
		return snap, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.store.Set(ctx, localstore.KeyCart, b); err != nil {
		s.logger.Error(ctx, "persist cart failed", "err", err)
		return snap, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return snap, nil
}

func indexOf(items []models.LineItem, productID string) int {
	for i, it := range items {
		if it.ProductID() == productID {
			return i
		}
	}
	return -1
}

func (s *cartService) AddItem(ctx context.Context, product models.Product, quantity int) error {
	p := models.NormalizeProduct(product)
	if p.ID == "" {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	// An existing item changes like UpdateQuantity(existing+quantity) and
	// stays local.
	if i := indexOf(s.items, p.ID); i >= 0 {
		next := models.AddQuantity(s.items[i].Quantity, quantity)
		if next <= 0 {
			s.mu.Unlock()
			return s.RemoveItem(ctx, p.ID)
		}
		s.items[i].Quantity = next
		snap, err := s.persistLocked(ctx)
		s.mu.Unlock()

		s.notify(snap)
		return err
	}

	quantity = max(1, models.ClampQuantity(quantity))
	item := models.LineItem{ID: models.NewLocalID(), Product: p, Quantity: quantity}
	s.items = append(s.items, item)
	snap, err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap)

	if id, ok := s.identity.Identity(ctx); ok {
		s.goRemote(func(ctx context.Context) {
			s.push(ctx, id, item)
		})
	}
	return err
}

func (s *cartService) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	i := indexOf(s.items, productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	snap, err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap)

	serverID, synced := removed.ID.Server()
	if !synced {
		return err
	}
	if _, ok := s.identity.Identity(ctx); ok {
		s.goRemote(func(ctx context.Context) {
			s.removeRemote(ctx, serverID)
		})
	}
	return err
}

// UpdateQuantity sets the quantity of an existing item. It never calls the
// remote API; the next sync converges it.
func (s *cartService) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	quantity = models.ClampQuantity(quantity)

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	i := indexOf(s.items, productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items[i].Quantity = quantity
	snap, err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap)
	return err
}

func (s *cartService) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	var serverIDs []int64
	for _, it := range s.items {
		if n, ok := it.ID.Server(); ok {
			serverIDs = append(serverIDs, n)
		}
	}
	s.items = nil
	snap, err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap)

	if len(serverIDs) == 0 {
		return err
	}
	if _, ok := s.identity.Identity(ctx); ok {
		s.goRemote(func(ctx context.Context) {
			var g errgroup.Group
			g.SetLimit(s.limit)
			for _, n := range serverIDs {
				g.Go(func() error {
					s.removeRemote(ctx, n)
					return nil
				})
			}
			_ = g.Wait()
		})
	}
	return err
}

func (s *cartService) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneItems(s.items)
}

func (s *cartService) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TotalItems(s.items)
}

func (s *cartService) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TotalPrice(s.items)
}

func (s *cartService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sync reconciles with the remote cart of the current identity. Without an
// identity it does nothing. Remote failures are logged and leave the local
// cart untouched; only a local storage failure is returned.
func (s *cartService) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	id, ok := s.identity.Identity(ctx)
	if !ok {
		return nil
	}
	return s.sync(ctx, id)
}

// IdentityChanged syncs when the identity differs from the one last synced.
// Losing the identity resets that marker, so signing in again as the same
// user syncs again.
func (s *cartService) IdentityChanged(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	id, ok := s.identity.Identity(ctx)

	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	if !ok {
		s.lastSynced = ""
		s.mu.Unlock()
		return nil
	}
	same := id.UserID == s.lastSynced
	s.mu.Unlock()

	if same {
		return nil
	}
	s.logger.Info(ctx, "identity changed", "user_id", id.UserID)
	return s.sync(ctx, id)
}

// sync requires s.syncMu.
func (s *cartService) sync(ctx context.Context, id Identity) error {
	s.mu.Lock()
	if s.state == StateUninitialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.state = StateSyncing
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateReady
		s.mu.Unlock()
	}()

	fetched, err := s.api.FetchCart(ctx, id.UserID)
	if err != nil {
		s.logger.Warn(ctx, "fetch remote cart failed, keeping local cart", "user_id", id.UserID, "err", err)
		return nil
	}

	remote := make([]models.LineItem, 0, len(fetched))
	for _, r := range fetched {
		if it, ok := r.LineItem(); ok {
			remote = append(remote, it)
		}
	}

	s.mu.Lock()
	merged, pending := MergeCarts(s.items, remote)
	s.items = merged
	s.lastSynced = id.UserID
	snap, persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap)
	s.logger.Info(ctx, "cart synced", "user_id", id.UserID, "remote", len(remote), "pushed", len(pending))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, it := range pending {
		g.Go(func() error {
			s.push(ctx, id, it)
			return nil
		})
	}
	_ = g.Wait()

	return persistErr
}

// push adds item remotely and records the server id on the local item.
func (s *cartService) push(ctx context.Context, id Identity, item models.LineItem) {
	created, err := s.api.AddItem(ctx, client.AddItemRequest{
		UserID:    id.UserID,
		ProductID: item.ProductID(),
		Quantity:  item.Quantity,
	})
	if err != nil {
		s.logger.Warn(ctx, "remote add failed", "product_id", item.ProductID(), "err", err)
		return
	}
	if created == nil {
		s.logger.Debug(ctx, "remote add returned no item", "product_id", item.ProductID())
		return
	}
	serverID, ok := created.ID.Int64()
	if !ok {
		s.logger.Debug(ctx, "remote add returned no numeric id", "product_id", item.ProductID(), "id", string(created.ID))
		return
	}
	s.applyServerID(ctx, item.ID, serverID)
}

// applyServerID replaces the temporary id tempID with serverID. When the
// item is gone (removed or cleared while the add was in flight) the remote
// item is an orphan and gets removed, unless a sync already adopted it.
func (s *cartService) applyServerID(ctx context.Context, tempID models.ItemID, serverID int64) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == tempID {
			s.items[i].ID = models.ServerID(serverID)
			snap, err := s.persistLocked(ctx)
			s.mu.Unlock()
			if err != nil {
				s.logger.Warn(ctx, "persist server id failed", "item_id", serverID, "err", err)
			}
			s.notify(snap)
			return
		}
	}
	adopted := false
	for _, it := range s.items {
		if n, ok := it.ID.Server(); ok && n == serverID {
			adopted = true
			break
		}
	}
	s.mu.Unlock()

	if adopted {
		return
	}
	s.logger.Debug(ctx, "removing orphaned remote item", "item_id", serverID)
	s.removeRemote(ctx, serverID)
}

func (s *cartService) removeRemote(ctx context.Context, itemID int64) {
	if err := s.api.RemoveItem(ctx, itemID); err != nil {
		s.logger.Warn(ctx, "remote remove failed", "item_id", itemID, "err", err)
	}
}

// goRemote runs fn in the background on the service context.
func (s *cartService) goRemote(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.bg)
	}()
}

func (s *cartService) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *cartService) notify(snap []models.LineItem) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(models.CloneItems(snap))
	}
}

func (s *cartService) Wait() {
	s.wg.Wait()
}

// Close cancels background remote calls and waits for them. Mutations still
// work afterwards but stay local.
func (s *cartService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
