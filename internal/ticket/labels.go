package ticket

import "github.com/psds-microservice/helpdesk-client/internal/model"

var statusLabels = map[model.TicketStatus]string{
	model.TicketStatusOpen:       "Abierto",
	model.TicketStatusInProgress: "En progreso",
	model.TicketStatusEscalated:  "Escalado",
	model.TicketStatusClosed:     "Cerrado",
}

var categoryLabels = map[model.TicketCategory]string{
	model.TicketCategoryLicensing:     "Licencias",
	model.TicketCategoryTechnical:     "Técnico",
	model.TicketCategoryGeneral:       "General",
	model.TicketCategoryDocumentation: "Documentación",
}

// Label returns the user-facing label of a status.
func Label(s model.TicketStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func CategoryLabel(c model.TicketCategory) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}
