package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	subcmd := args[0]
	switch subcmd {
	case "version":
		fmt.Printf("relay %s\n", Version)
		return true
	case "creds":
		return cliCreds(args[1:], dbPath)
	case "audit":
		return cliAudit(args[1:], dbPath)
	default:
		return false
	}
}

func cliCreds(args []string, dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	ctx := context.Background()

	if len(args) == 0 || args[0] == "list" {
		creds, err := st.Credentials(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(creds) == 0 {
			fmt.Println("No credentials configured.")
			return true
		}
		for _, c := range creds {
			fmt.Printf("  [%d] level=%d password_len=%d\n", c.ID, c.Level, len(c.Password))
		}
		return true
	}

	if args[0] == "add" && len(args) > 2 {
		password := args[1]
		var level int
		if _, err := fmt.Sscanf(args[2], "%d", &level); err != nil {
			fmt.Fprintf(os.Stderr, "invalid level %q: %v\n", args[2], err)
			os.Exit(1)
		}
		if err := st.AddCredential(ctx, []byte(password), int32(level)); err != nil {
			fmt.Fprintf(os.Stderr, "error adding credential: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added credential (level=%d)\n", level)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: relay creds [list|add <password> <level>]\n")
	os.Exit(1)
	return true
}

func cliAudit(args []string, dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	rows, err := st.RecentAudit(context.Background(), 50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("No audit entries.")
		return true
	}
	for _, r := range rows {
		fmt.Printf("  %s  %-16s user_id=%d\n", r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.Action, r.UserID)
	}
	return true
}
