package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psds-microservice/helpdesk-client/internal/apiclient"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

var (
	listStatus   string
	listPage     int
	listPageSize int

	createTitle    string
	createCategory string
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Manage your tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tickets",
	RunE:  runTicketsList,
}

var ticketsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new ticket",
	RunE:  runTicketsCreate,
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsShow,
}

var ticketsCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsClose,
}

func init() {
	addListFlags(ticketsListCmd)
	ticketsCreateCmd.Flags().StringVar(&createTitle, "title", "", "ticket title (at least 3 characters)")
	ticketsCreateCmd.Flags().StringVar(&createCategory, "category", "", "technical, licensing, general or documentation")
	_ = ticketsCreateCmd.MarkFlagRequired("title")
	ticketsCmd.AddCommand(ticketsListCmd, ticketsCreateCmd, ticketsShowCmd, ticketsCloseCmd)
}

func addListFlags(c *cobra.Command) {
	c.Flags().StringVar(&listStatus, "status", "", "comma-separated status filter")
	c.Flags().IntVar(&listPage, "page", 0, "page number")
	c.Flags().IntVar(&listPageSize, "page-size", 0, "page size")
}

func listOptions() (apiclient.ListOptions, error) {
	statuses, err := parseStatuses(listStatus)
	if err != nil {
		return apiclient.ListOptions{}, err
	}
	return apiclient.ListOptions{Statuses: statuses, Page: listPage, PageSize: listPageSize}, nil
}

func runTicketsList(cmd *cobra.Command, args []string) error {
	opts, err := listOptions()
	if err != nil {
		return err
	}
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	list, err := app.Tickets.List(cmd.Context(), opts)
	if err != nil {
		return describe(err)
	}
	printTickets(cmd.OutOrStdout(), list)
	return nil
}

func runTicketsCreate(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	t, err := app.Tickets.Create(cmd.Context(), createTitle, model.TicketCategory(createCategory))
	if err != nil {
		return describe(err)
	}
	printTicket(cmd.OutOrStdout(), t)
	return nil
}

func runTicketsShow(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	t, err := app.Tickets.GetByID(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	printTicket(cmd.OutOrStdout(), t)
	return nil
}

func runTicketsClose(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	t, err := app.Tickets.Close(cmd.Context(), args[0])
	if err != nil {
		return describe(err)
	}
	printTicket(cmd.OutOrStdout(), t)
	return nil
}
