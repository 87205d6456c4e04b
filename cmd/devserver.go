package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/helpdesk-client/internal/application"
)

var (
	seedUsers     []string
	seedOperators []string
	devAddr       string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory helpdesk API for local development",
	RunE:  runDevServer,
}

func init() {
	devserverCmd.Flags().StringArrayVar(&seedUsers, "user", nil, "seed a user as email:password (repeatable)")
	devserverCmd.Flags().StringArrayVar(&seedOperators, "operator", nil, "seed an operator as email:password (repeatable)")
	devserverCmd.Flags().StringVar(&devAddr, "addr", "", "listen address (default $DEVSERVER_ADDR)")
}

func runDevServer(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if devAddr != "" {
		cfg.DevServerAddr = devAddr
	}
	srv := application.NewDevServer(cfg, logger)
	for _, group := range []struct {
		specs    []string
		operator bool
	}{{seedUsers, false}, {seedOperators, true}} {
		for _, spec := range group.specs {
			email, pass, ok := strings.Cut(spec, ":")
			if !ok {
				return fmt.Errorf("seed %q: want email:password", spec)
			}
			if err := srv.Seed(email, pass, group.operator); err != nil {
				return err
			}
		}
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return srv.Run(ctx)
}
