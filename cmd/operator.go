package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/psds-microservice/helpdesk-client/internal/chatsync"
	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/operator"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Operator dashboard and escalation hand-off",
}

var operatorStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Ticket counts by status",
	RunE:  runOperatorStats,
}

var operatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets of all users (default: escalated and in progress)",
	RunE:  runOperatorList,
}

var operatorTakeCmd = &cobra.Command{
	Use:   "take <ticket-id>",
	Short: "Take an escalated ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperatorTake,
}

var operatorRespondCmd = &cobra.Command{
	Use:   "respond <ticket-id> <message>",
	Short: "Answer a ticket as a human operator",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runOperatorRespond,
}

var operatorWatchCmd = &cobra.Command{
	Use:   "watch [ticket-id]",
	Short: "Follow the dashboard and, optionally, one ticket's chat",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOperatorWatch,
}

func init() {
	addListFlags(operatorListCmd)
	operatorCmd.AddCommand(operatorStatsCmd, operatorListCmd, operatorTakeCmd, operatorRespondCmd, operatorWatchCmd)
}

func runOperatorStats(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	st, err := app.Operator.Stats(cmd.Context())
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "escalated %d  in progress %d  open %d  total %d\n",
		st.Escalated, st.InProgress, st.Open, st.Total)
	return nil
}

func runOperatorList(cmd *cobra.Command, args []string) error {
	opts, err := listOptions()
	if err != nil {
		return err
	}
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	list, err := app.Operator.List(cmd.Context(), opts)
	if err != nil {
		return describe(err)
	}
	printTickets(cmd.OutOrStdout(), list)
	return nil
}

func runOperatorTake(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	t, err := app.Operator.TakeTicket(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	printTicket(cmd.OutOrStdout(), t)
	return nil
}

func runOperatorRespond(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	m, err := app.Operator.Respond(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return describe(err)
	}
	printMessage(cmd.OutOrStdout(), *m)
	return nil
}

func runOperatorWatch(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	var view *chatsync.View
	if len(args) == 1 {
		if view, err = newChatView(cmd, app, args[0], true); err != nil {
			return err
		}
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	out := cmd.OutOrStdout()
	var (
		printMu sync.Mutex
		seen    operator.DashboardState
	)
	dash := app.Dashboard(operator.DashboardConfig{
		OnUpdate: func(st operator.DashboardState) {
			printMu.Lock()
			defer printMu.Unlock()
			if st.Stats != nil && !st.StatsAt.Equal(seen.StatsAt) {
				fmt.Fprintf(out, "== escalated %d  in progress %d  open %d  total %d\n",
					st.Stats.Escalated, st.Stats.InProgress, st.Stats.Open, st.Stats.Total)
			}
			if !st.TicketsAt.Equal(seen.TicketsAt) {
				printTickets(out, &model.TicketList{Tickets: st.Tickets, Total: st.Total, Page: 1})
			}
			seen = st
		},
	})
	g.Go(func() error {
		dash.Start(ctx)
		dash.Wait()
		return nil
	})

	if view != nil {
		g.Go(func() error {
			if err := view.Refresh(ctx); err != nil {
				return describe(err)
			}
			view.Start(ctx)
			view.Wait()
			return nil
		})
	}
	return g.Wait()
}
