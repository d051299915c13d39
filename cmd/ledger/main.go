// Command ledger is an interactive console over the ledger service. It is a
// thin adapter: every command maps to one service call and prints the result.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/amirasaad/ledger/infra/initializer"
	"github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"
)

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

func main() {
	app, err := initializer.New()
	if err != nil {
		errColor.Fprintln(os.Stderr, "startup failed:", err)
		os.Exit(1)
	}

	headColor.Println("ledger console, type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return
		}
		if err := dispatch(ctx, app.Ledger, args); err != nil {
			errColor.Println("error:", err)
		}
	}
}

func dispatch(ctx context.Context, svc *ledger.Service, args []string) error {
	switch args[0] {
	case "help":
		printHelp()
		return nil
	case "open":
		if len(args) < 3 {
			return fmt.Errorf("usage: open <full-name> <email>")
		}
		password, err := promptPassword("password: ")
		if err != nil {
			return err
		}
		id, err := svc.OpenAccount(ctx, args[1], args[2], password)
		if err != nil {
			return err
		}
		okColor.Printf("account open: %s\n", id)
		return nil
	case "login":
		if len(args) < 2 {
			return fmt.Errorf("usage: login <email>")
		}
		password, err := promptPassword("password: ")
		if err != nil {
			return err
		}
		id, err := svc.Authenticate(ctx, args[1], password)
		if err != nil {
			return err
		}
		okColor.Printf("authenticated: %s\n", id)
		return nil
	case "id":
		if len(args) < 2 {
			return fmt.Errorf("usage: id <email>")
		}
		fmt.Println(svc.AccountIDByEmail(args[1]))
		return nil
	case "balance":
		id, err := parseID(args, 1, "balance <account-id>")
		if err != nil {
			return err
		}
		balance, err := svc.GetBalance(ctx, id)
		if err != nil {
			return err
		}
		okColor.Printf("balance: %d\n", balance)
		return nil
	case "deposit", "withdraw":
		id, err := parseID(args, 1, args[0]+" <account-id> <amount>")
		if err != nil {
			return err
		}
		amount, err := parseAmount(args, 2)
		if err != nil {
			return err
		}
		if args[0] == "deposit" {
			err = svc.Deposit(ctx, id, amount)
		} else {
			err = svc.Withdraw(ctx, id, amount)
		}
		if err != nil {
			return err
		}
		return printBalance(ctx, svc, id)
	case "transfer":
		from, err := parseID(args, 1, "transfer <from-id> <to-id> <amount>")
		if err != nil {
			return err
		}
		to, err := parseID(args, 2, "transfer <from-id> <to-id> <amount>")
		if err != nil {
			return err
		}
		amount, err := parseAmount(args, 3)
		if err != nil {
			return err
		}
		if err := svc.Transfer(ctx, from, to, amount); err != nil {
			return err
		}
		okColor.Println("transfer committed")
		return nil
	case "overdraft":
		id, err := parseID(args, 1, "overdraft <account-id> [limit]")
		if err != nil {
			return err
		}
		if len(args) < 3 {
			limit, err := svc.GetOverdraftLimit(ctx, id)
			if err != nil {
				return err
			}
			okColor.Printf("overdraft limit: %d\n", limit)
			return nil
		}
		limit, err := parseAmount(args, 2)
		if err != nil {
			return err
		}
		if err := svc.SetOverdraftLimit(ctx, id, limit); err != nil {
			return err
		}
		okColor.Printf("overdraft limit set: %d\n", limit)
		return nil
	case "close":
		id, err := parseID(args, 1, "close <account-id>")
		if err != nil {
			return err
		}
		if err := svc.CloseAccount(ctx, id); err != nil {
			return err
		}
		okColor.Println("account closed")
		return nil
	case "passwd":
		id, err := parseID(args, 1, "passwd <account-id>")
		if err != nil {
			return err
		}
		oldPassword, err := promptPassword("current password: ")
		if err != nil {
			return err
		}
		newPassword, err := promptPassword("new password: ")
		if err != nil {
			return err
		}
		if err := svc.ChangePassword(ctx, id, oldPassword, newPassword); err != nil {
			return err
		}
		okColor.Println("password changed")
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", args[0])
	}
}

func printBalance(ctx context.Context, svc *ledger.Service, id uuid.UUID) error {
	balance, err := svc.GetBalance(ctx, id)
	if err != nil {
		return err
	}
	okColor.Printf("balance: %d\n", balance)
	return nil
}

func parseID(args []string, pos int, usage string) (uuid.UUID, error) {
	if len(args) <= pos {
		return uuid.Nil, fmt.Errorf("usage: %s", usage)
	}
	id, err := uuid.Parse(args[pos])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid account id %q: %w", args[pos], err)
	}
	return id, nil
}

func parseAmount(args []string, pos int) (int64, error) {
	if len(args) <= pos {
		return 0, fmt.Errorf("missing amount (minor currency units)")
	}
	amount, err := strconv.ParseInt(args[pos], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", args[pos], err)
	}
	return amount, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	password, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func printHelp() {
	fmt.Println(`commands:
  open <full-name> <email>          open an account (prompts for password)
  login <email>                     authenticate (prompts for password)
  id <email>                        derive the account id for an email
  balance <account-id>              show the balance (minor units)
  deposit <account-id> <amount>     credit the account
  withdraw <account-id> <amount>    debit the account
  transfer <from> <to> <amount>     move funds between accounts
  overdraft <account-id> [limit]    get or set the overdraft limit
  close <account-id>                close the account (terminal)
  passwd <account-id>               change password (prompts old and new)
  exit`)
}
