package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/cartkeeper/internal/client/client"
	"github.com/dmitrijs2005/cartkeeper/internal/client/config"
	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
	"github.com/dmitrijs2005/cartkeeper/internal/client/repositories/localstore"
	"github.com/dmitrijs2005/cartkeeper/internal/client/services"
	"github.com/dmitrijs2005/cartkeeper/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	auth   services.AuthService
	cart   services.CartService
	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens local storage and builds the services from c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat})

	db, err := client.InitDatabase(ctx, c.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	auth := services.NewAuthService(db, logger)

	api, err := client.NewHTTPClient(c.APIBaseURL, auth, client.Options{
		Timeout:       c.RequestTimeout,
		RetryAttempts: c.RetryAttempts,
		RetryBackoff:  c.RetryBackoff,
		Logger:        logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cart := services.NewCartService(api, localstore.NewSQLiteRepository(db), auth, logger, services.Options{})

	a := newApp(c, logger, auth, cart, os.Stdin, os.Stdout)
	a.db = db
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, auth services.AuthService, cart services.CartService, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		logger: logger,
		auth:   auth,
		cart:   cart,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run loads the cart, starts the identity watcher and runs the REPL until
// the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	unsubscribe := a.cart.Subscribe(a.countPrinter())
	defer unsubscribe()

	fmt.Fprintln(a.out, "Cart CLI (type 'help' for commands)")

	if err := a.cart.Init(ctx); err != nil {
		a.logger.Error(ctx, "load cart", "err", err)
		fmt.Fprintln(a.out, "Could not load the saved cart:", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.StartIdentityWatcher(ctx, a.config.IdentityCheckInterval)
	}()

	runREPL(ctx, a, a.status, a.reader)

	cancel()
	wg.Wait()
	return nil
}

// close flushes pending remote writes before releasing resources.
func (a *App) close() {
	a.cart.Wait()
	a.cart.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn(context.Background(), "close database", "err", err)
		}
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	_, ok := a.auth.Identity(ctx)
	return ok
}

func (a *App) status() string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	user := "guest"
	if id, ok := a.auth.Identity(ctx); ok {
		user = id.UserID
	}
	return fmt.Sprintf("(%s %s, %d items)", user, a.cart.State(), a.cart.TotalItems())
}

// countPrinter reports the item count whenever it changes.
func (a *App) countPrinter() services.Listener {
	var mu sync.Mutex
	last := -1
	return func(items []models.LineItem) {
		n := models.TotalItems(items)

		mu.Lock()
		changed := n != last
		last = n
		mu.Unlock()

		if changed {
			fmt.Fprintf(a.out, "[cart: %d items]\n", n)
		}
	}
}
