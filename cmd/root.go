package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/helpdesk-client/internal/application"
	"github.com/psds-microservice/helpdesk-client/internal/config"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/navigate"
	"github.com/psds-microservice/helpdesk-client/internal/session"
)

var rootCmd = &cobra.Command{
	Use:           "helpdesk",
	Short:         "Helpdesk client: tickets, agent chat and operator hand-off",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(ticketsCmd, chatCmd, operatorCmd, devserverCmd)
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// cliNavigator turns navigation requests into hints for the terminal user.
func cliNavigator(cmd *cobra.Command) navigate.Navigator {
	return navigate.Func(func(route string) {
		out := cmd.ErrOrStderr()
		switch {
		case route == navigate.RouteLogin:
			fmt.Fprintln(out, "session expired: run `helpdesk login`")
		case strings.HasPrefix(route, "/chat/"):
			fmt.Fprintf(out, "open the chat with `helpdesk chat watch %s`\n", strings.TrimPrefix(route, "/chat/"))
		}
	})
}

// newClient loads config, builds the client and restores the persisted
// session.
func newClient(cmd *cobra.Command) (*application.Client, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app, err := application.NewClient(cfg, nil, cliNavigator(cmd), logger)
	if err != nil {
		return nil, err
	}
	app.Session.RestoreSession(cmd.Context())
	return app, nil
}

// authedClient is newClient for commands that need a signed-in user.
func authedClient(cmd *cobra.Command) (*application.Client, error) {
	app, err := newClient(cmd)
	if err != nil {
		return nil, err
	}
	if app.Session.Context().Status() != session.StatusAuthenticated {
		return nil, errors.New("not logged in: run `helpdesk login`")
	}
	return app, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// describe renders well-known failures for the terminal.
func describe(err error) error {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		return fmt.Errorf("%s %s", ve.Field, ve.Reason)
	case errors.Is(err, errs.ErrAuthExpired):
		return errors.New("session expired: run `helpdesk login`")
	}
	return err
}
