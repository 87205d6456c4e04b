package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/psds-microservice/helpdesk-client/internal/model"
	"github.com/psds-microservice/helpdesk-client/internal/ticket"
)

func printTickets(w io.Writer, list *model.TicketList) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tCATEGORY\tMESSAGES\tCREATED")
	for _, t := range list.Tickets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Title, ticket.Label(t.Status), ticket.CategoryLabel(t.Category),
			t.MessageCount, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
	fmt.Fprintf(w, "%d of %d (page %d)\n", len(list.Tickets), list.Total, list.Page)
}

func printTicket(w io.Writer, t *model.Ticket) {
	fmt.Fprintf(w, "%s  %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "  status:   %s\n", ticket.Label(t.Status))
	fmt.Fprintf(w, "  category: %s\n", ticket.CategoryLabel(t.Category))
	fmt.Fprintf(w, "  messages: %d\n", t.MessageCount)
	if t.EscalatedAt != nil {
		fmt.Fprintf(w, "  escalated %s\n", t.EscalatedAt.Local().Format("2006-01-02 15:04"))
	}
	if t.ClosedAt != nil {
		fmt.Fprintf(w, "  closed    %s\n", t.ClosedAt.Local().Format("2006-01-02 15:04"))
	}
}

func printMessage(w io.Writer, m model.Message) {
	who := string(m.Role)
	switch {
	case m.HumanAuthored():
		who = "operator"
	case m.Role == model.MessageRoleAssistant:
		who = "agent"
	}
	fmt.Fprintf(w, "[%s] %-8s %s\n", m.CreatedAt.Local().Format("15:04:05"), who, strings.TrimSpace(m.Content))
}

func parseStatuses(v string) ([]model.TicketStatus, error) {
	if v == "" {
		return nil, nil
	}
	var out []model.TicketStatus
	for _, part := range strings.Split(v, ",") {
		st := model.TicketStatus(strings.TrimSpace(part))
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q", st)
		}
		out = append(out, st)
	}
	return out, nil
}
