package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	SetQuantity(ctx context.Context, args []string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) error
	Total(ctx context.Context) error
	Sync(ctx context.Context) error
}

// runREPL starts a read–eval–print loop over the cart.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on 'a' with the remaining tokens as arguments. The
// loop exits on EOF or when the user types "exit" or "quit".
//
//	help                      show available commands
//	login / logout            store or forget the API token
//	add <productId> [qty]     add a product (prompts for details of new ones)
//	remove <productId>        remove a product
//	qty <productId> <n>       set a quantity (0 removes)
//	clear                     empty the cart
//	l | list                  list line items
//	total                     item count and price total
//	sync                      reconcile with the remote cart now
//	exit | quit               leave the program
//
// Errors returned by handlers are reported and the loop continues. The loop
// also stops once ctx is cancelled, even while waiting for input.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("cart %s> ", statusFn()))

		line, err := readLine(ctx, reader)
		if ctx.Err() != nil {
			return
		}
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: add, remove, qty, clear, (l)ist, total, sync, logout, exit")
			} else {
				printlnFn("Available commands: add, remove, qty, clear, (l)ist, total, login, exit")
			}

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "add":
			cmdErr = a.Add(ctx, args)

		case "remove", "rm":
			cmdErr = a.Remove(ctx, args)

		case "qty":
			cmdErr = a.SetQuantity(ctx, args)

		case "clear":
			cmdErr = a.Clear(ctx)

		case "l", "list":
			cmdErr = a.List(ctx)

		case "total":
			cmdErr = a.Total(ctx)

		case "sync":
			cmdErr = a.Sync(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}

type readResult struct {
	line string
	err  error
}

// readLine reads one line from reader or gives up when ctx is done. After a
// cancellation the pending read is abandoned and its line is lost.
func readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	ch := make(chan readResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
