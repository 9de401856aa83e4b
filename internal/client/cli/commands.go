package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
)

var errUsage = errors.New("usage")

func usage(text string) error {
	return fmt.Errorf("%w: %s", errUsage, text)
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", s)
	}
	return n, nil
}

// Add adds args[0] with an optional quantity. Details of a product that is
// not yet in the cart are prompted for; empty answers fall back to defaults.
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("add <productId> [qty]")
	}

	qty := 1
	if len(args) == 2 {
		n, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		qty = n
	}

	p := models.Product{ID: args[0]}
	if existing, ok := a.findItem(args[0]); ok {
		p = existing.Product
	} else {
		var err error
		if p, err = a.promptProduct(args[0]); err != nil {
			return err
		}
	}

	return a.cart.AddItem(ctx, p, qty)
}

func (a *App) promptProduct(id string) (models.Product, error) {
	p := models.Product{ID: id}

	name, err := GetSimpleText(a.reader, "Name (optional)", a.out)
	if err != nil {
		return p, err
	}
	p.Name = name

	price, err := GetSimpleText(a.reader, "Price (optional)", a.out)
	if err != nil {
		return p, err
	}
	if price != "" {
		v, err := strconv.ParseFloat(strings.TrimPrefix(price, "$"), 64)
		if err != nil {
			return p, fmt.Errorf("price %q is not a number", price)
		}
		p.Price = v
	}

	category, err := GetSimpleText(a.reader, "Category (optional)", a.out)
	if err != nil {
		return p, err
	}
	p.Category = category

	return p, nil
}

func (a *App) findItem(productID string) (models.LineItem, bool) {
	for _, it := range a.cart.Items() {
		if it.ProductID() == productID {
			return it, true
		}
	}
	return models.LineItem{}, false
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("remove <productId>")
	}
	if _, ok := a.findItem(args[0]); !ok {
		fmt.Fprintf(a.out, "%s is not in the cart\n", args[0])
		return nil
	}
	return a.cart.RemoveItem(ctx, args[0])
}

func (a *App) SetQuantity(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("qty <productId> <n>")
	}
	n, err := parseQuantity(args[1])
	if err != nil {
		return err
	}
	if _, ok := a.findItem(args[0]); !ok {
		fmt.Fprintf(a.out, "%s is not in the cart\n", args[0])
		return nil
	}
	return a.cart.UpdateQuantity(ctx, args[0], n)
}

func (a *App) Clear(ctx context.Context) error {
	return a.cart.ClearCart(ctx)
}

func (a *App) List(ctx context.Context) error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "The cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tCATEGORY\tPRICE\tQTY\tSUBTOTAL\tSTATUS")
	for _, it := range items {
		status := "pending"
		if it.ID.IsServer() {
			status = "synced"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%.2f\t%s\n",
			it.ProductID(), it.Product.Name, it.Product.Category, it.Product.Price, it.Quantity, it.Subtotal(), status)
	}
	return tw.Flush()
}

func (a *App) Total(ctx context.Context) error {
	fmt.Fprintf(a.out, "Items: %d, total: %.2f\n", a.cart.TotalItems(), a.cart.TotalPrice())
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn(ctx) {
		fmt.Fprintln(a.out, "Not logged in, the cart is local only")
		return nil
	}
	if err := a.cart.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sync finished")
	return nil
}
