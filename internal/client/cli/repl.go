package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Chats(ctx context.Context) error
	Search(ctx context.Context, query string) error
	Start(ctx context.Context, handle, text string) error
	Open(ctx context.Context, chatID string) error
	Send(ctx context.Context, text string) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("chat> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() && !publicCommands[cmd] {
			printlnFn("Please login or register first")
			continue
		}

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: chats, search <q>, start <handle> <text>, open <chatId>, send <text>, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "chats":
			err = a.Chats(ctx)

		case "search":
			if len(args) == 0 {
				printlnFn("Usage: search <handle>")
				continue
			}
			err = a.Search(ctx, args[0])

		case "start":
			if len(args) < 2 {
				printlnFn("Usage: start <handle> <text>")
				continue
			}
			err = a.Start(ctx, args[0], strings.Join(args[1:], " "))

		case "open":
			if len(args) == 0 {
				printlnFn("Usage: open <chatId>")
				continue
			}
			err = a.Open(ctx, args[0])

		case "send":
			if len(args) == 0 {
				printlnFn("Usage: send <text>")
				continue
			}
			err = a.Send(ctx, strings.Join(args, " "))

		case "logout":
			err = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

var publicCommands = map[string]bool{
	"help":     true,
	"register": true,
	"login":    true,
	"exit":     true,
	"quit":     true,
}
