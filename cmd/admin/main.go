// Command admin is the operator CLI: it manages local accounts, their
// administrator keys, and moderator grants directly in the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/dmitrijs2005/newsflow/internal/common"
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/newsflow/internal/server/services"
)

const usage = `usage: admin <command> [-d dsn] <args>

commands:
  add-user      <username>            create an account (prompts for password)
  set-admin-key <username> <keyfile>  register an armored PGP public key
  grant         <username> <pattern>  grant a moderator pattern
  revoke        <username> <pattern>  revoke a moderator pattern
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "admin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}
	command, rest := args[0], args[1:]

	defaults := &config.Config{}
	defaults.LoadDefaults()

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dsn := fs.String("d", defaults.DatabaseDSN, "database DSN")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	pos := fs.Args()

	ctx := context.Background()
	m, err := repomanager.NewPostgresRepositoryManager(ctx, *dsn)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer m.Close()

	switch command {
	case "add-user":
		if len(pos) != 1 {
			return fmt.Errorf("usage: add-user <username>")
		}
		return addUser(ctx, m, pos[0])

	case "set-admin-key":
		if len(pos) != 2 {
			return fmt.Errorf("usage: set-admin-key <username> <keyfile>")
		}
		return setAdminKey(ctx, m, pos[0], pos[1])

	case "grant":
		if len(pos) != 2 {
			return fmt.Errorf("usage: grant <username> <pattern>")
		}
		return m.Users().Grant(ctx, pos[0], pos[1])

	case "revoke":
		if len(pos) != 2 {
			return fmt.Errorf("usage: revoke <username> <pattern>")
		}
		return m.Users().Revoke(ctx, pos[0], pos[1])

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func addUser(ctx context.Context, m repomanager.RepositoryManager, username string) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	salt := common.GenerateRandByteArray(16)
	user := &models.User{
		Username:     username,
		PasswordHash: services.HashPassword(password, salt),
		Salt:         salt,
	}
	if err := m.Users().Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Printf("user %s created\n", username)
	return nil
}

func setAdminKey(ctx context.Context, m repomanager.RepositoryManager, username, keyfile string) error {
	key, err := os.ReadFile(keyfile)
	if err != nil {
		return fmt.Errorf("reading key file: %w", err)
	}
	if err := m.Users().SetAdminKey(ctx, username, string(key)); err != nil {
		return fmt.Errorf("setting admin key: %w", err)
	}

	fmt.Printf("admin key for %s updated\n", username)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}

	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(first), nil
}
