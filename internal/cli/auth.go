package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tansuo/paperchat/internal/api"
	"github.com/tansuo/paperchat/internal/protocol"
	"github.com/tansuo/paperchat/internal/store"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in to the server and store the auth token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd.Context(), args, func(ctx context.Context, gw *api.Gateway, user, pass string) (protocol.AuthResponse, error) {
				return gw.Login(ctx, user, pass)
			})
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account and store the auth token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd.Context(), args, func(ctx context.Context, gw *api.Gateway, user, pass string) (protocol.AuthResponse, error) {
				return gw.Register(ctx, user, pass)
			})
		},
	}
}

type authFunc func(context.Context, *api.Gateway, string, string) (protocol.AuthResponse, error)

func runAuth(ctx context.Context, args []string, call authFunc) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	username, err := promptUsername(args)
	if err != nil {
		return err
	}
	password, err := promptPassword()
	if err != nil {
		return err
	}

	resp, err := call(ctx, app.gateway, username, password)
	if err != nil {
		return err
	}

	if err := app.db.SetValue(store.KeyToken, resp.Token); err != nil {
		return err
	}
	if err := app.db.SetValue(store.KeyUsername, resp.Username); err != nil {
		return err
	}

	color.Green("logged in as %s", resp.Username)
	return nil
}

func promptUsername(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	fmt.Print("username: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	username := strings.TrimSpace(line)
	if username == "" {
		return "", errors.New("username required")
	}
	return username, nil
}

func promptPassword() (string, error) {
	fmt.Print("password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
