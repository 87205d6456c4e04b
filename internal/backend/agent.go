package backend

import (
	"fmt"
	"strings"

	"github.com/psds-microservice/helpdesk-client/internal/model"
)

// Reply is the automated agent's answer to one user message.
type Reply struct {
	Content  string
	Escalate bool
	Reason   string
}

// Agent produces the automated reply to a user message.
type Agent interface {
	Reply(t model.Ticket, history []model.Message, content string) Reply
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(t model.Ticket, history []model.Message, content string) Reply

func (f AgentFunc) Reply(t model.Ticket, history []model.Message, content string) Reply {
	return f(t, history, content)
}

// CannedAgent answers with a fixed acknowledgement and escalates when
// the user asks for a person or mentions a sensitive subject.
type CannedAgent struct{}

var (
	humanKeywords   = []string{"humano", "operador", "persona", "human", "operator"}
	complexKeywords = []string{"legal", "demanda", "accidente", "sanción", "multa"}
)

func (CannedAgent) Reply(t model.Ticket, _ []model.Message, content string) Reply {
	lc := strings.ToLower(content)
	for _, k := range humanKeywords {
		if strings.Contains(lc, k) {
			return Reply{
				Content:  "Entendido, voy a pasar tu consulta a un operador.",
				Escalate: true,
				Reason:   "El usuario solicitó atención humana",
			}
		}
	}
	for _, k := range complexKeywords {
		if strings.Contains(lc, k) {
			return Reply{
				Content:  "Esta consulta requiere revisión por parte de nuestro equipo.",
				Escalate: true,
				Reason:   "La consulta requiere verificación oficial",
			}
		}
	}
	return Reply{Content: fmt.Sprintf("Gracias, he registrado tu consulta sobre %q. ¿Puedes darme más detalles?", t.Title)}
}

// Fixed system texts.
const (
	takenNotice     = "👤 Un operador humano ha tomado esta consulta y te responderá pronto."
	escalatedNotice = "🔔 Este ticket ha sido escalado a un operador humano. Razón: "
)
