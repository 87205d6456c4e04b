package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/helpdesk-client/internal/application"
	"github.com/psds-microservice/helpdesk-client/internal/chatsync"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

var chatAsOperator bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk on a ticket",
}

var chatWatchCmd = &cobra.Command{
	Use:   "watch <ticket-id>",
	Short: "Follow a ticket's conversation until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatWatch,
}

var chatSendCmd = &cobra.Command{
	Use:   "send <ticket-id> <message>",
	Short: "Send a message on your ticket",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChatSend,
}

func init() {
	chatWatchCmd.Flags().BoolVar(&chatAsOperator, "operator", false, "read the ticket through the operator endpoints")
	chatCmd.AddCommand(chatWatchCmd, chatSendCmd)
}

// newChatView builds a view that prints new messages and status changes.
func newChatView(cmd *cobra.Command, app *application.Client, id string, asOperator bool) (*chatsync.View, error) {
	out := cmd.OutOrStdout()
	return app.ChatView(id, asOperator, chatsync.Config{
		OnAppend: func(added []model.Message) {
			for _, m := range added {
				printMessage(out, m)
			}
		},
		OnStatus: func(from, to model.TicketStatus) {
			fmt.Fprintf(out, "-- %s: %s → %s\n", id, ticket.Label(from), ticket.Label(to))
		},
		ConnectionLostAfter: 3,
		OnConnection: func(lost bool) {
			if lost {
				fmt.Fprintln(cmd.ErrOrStderr(), "-- connection lost, retrying")
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "-- connection restored")
			}
		},
	})
}

func runChatWatch(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	view, err := newChatView(cmd, app, args[0], chatAsOperator)
	if err != nil {
		return err
	}
	if err := view.Refresh(ctx); err != nil {
		return describe(err)
	}
	view.Start(ctx)
	view.Wait()
	return nil
}

func runChatSend(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	if _, err := app.Tickets.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
		return describe(err)
	}
	history, err := app.API.Messages(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	for _, m := range history.Messages {
		printMessage(cmd.OutOrStdout(), m)
	}
	return nil
}
