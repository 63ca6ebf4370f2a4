// devbookctl is an interactive console client for a DevBook auth server.
// It keeps a session in memory and walks the same flows the web client
// does: password login, the 2FA challenge, enrollment and disable.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/sksah1842/devbook/pkg/client"
)

type Config struct {
	ServerURL string `env:"DEVBOOK_URL" env-default:"http://localhost:5000"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))
	godotenv.Load()

	config := Config{}
	cleanenv.ReadEnv(&config)

	c := client.New(config.ServerURL, client.NewSessionStore())
	fmt.Printf("devbookctl connected to %s\n", config.ServerURL)
	fmt.Println("Commands: login, code, whoami, setup, verify-setup, cancel-setup, disable, logout, quit")

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print(prompt(c.Store().State()))
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := run(ctx, c, cmd, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func prompt(state client.SessionState) string {
	switch {
	case state.Requires2FA:
		return "devbook(2fa)> "
	case state.Status == client.AuthAuthenticated && state.User != nil:
		return fmt.Sprintf("devbook(%s)> ", state.User.Email)
	case state.Status == client.AuthAuthenticated:
		return "devbook(*)> "
	default:
		return "devbook> "
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		if err := c.Login(ctx, args[0], args[1]); err != nil {
			return err
		}
		if c.Store().State().Requires2FA {
			fmt.Println("2FA challenge: enter `code <6 digits>` from your authenticator")
		} else {
			fmt.Println("logged in")
		}
		return nil

	case "code":
		if len(args) != 1 {
			return fmt.Errorf("usage: code <6 digits>")
		}
		if err := c.VerifyLogin(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil

	case "whoami":
		if err := c.LoadUser(ctx); err != nil {
			return err
		}
		u := c.Store().State().User
		fmt.Printf("%s <%s> 2fa=%v joined=%s\n", u.Name, u.Email, u.TwoFactorEnabled, u.CreatedAt.Format("2006-01-02"))
		return nil

	case "setup":
		if err := c.Setup2FA(ctx); err != nil {
			return err
		}
		setup := c.Store().State().TwoFASetup
		fmt.Println("scan the QR code or enter the key manually, then run `verify-setup <6 digits>`")
		fmt.Println("manual entry key:", setup.ManualEntryKey)
		return nil

	case "verify-setup":
		if len(args) != 1 {
			return fmt.Errorf("usage: verify-setup <6 digits>")
		}
		if err := c.VerifySetup(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("2FA enabled")
		return nil

	case "cancel-setup":
		c.CancelSetup()
		fmt.Println("setup cancelled")
		return nil

	case "disable":
		if len(args) != 1 {
			return fmt.Errorf("usage: disable <6 digits>")
		}
		if err := c.Disable2FA(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("2FA disabled")
		return nil

	case "logout":
		c.Logout()
		fmt.Println("logged out")
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
