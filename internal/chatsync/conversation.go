package chatsync

import (
	"cmp"
	"slices"
	"sync"

	"github.com/psds-microservice/helpdesk-client/internal/model"
)

// Conversation — упорядоченная переписка одного тикета.
//
// Merge only ever adds ids it has not seen; entries already present are
// never overwritten. Order is (created_at, id), so merging the same
// batch twice, or two overlapping batches in either order, yields the
// same sequence.
type Conversation struct {
	mu       sync.Mutex
	ticketID string
	seen     map[string]struct{}
	messages []model.Message
}

func NewConversation(ticketID string) *Conversation {
	return &Conversation{ticketID: ticketID, seen: make(map[string]struct{})}
}

// Merge reconciles a fetched batch and returns the messages it appended,
// in conversation order.
func (c *Conversation) Merge(batch []model.Message) []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []model.Message
	for _, m := range batch {
		if m.ID == "" {
			continue
		}
		if m.TicketID != "" && c.ticketID != "" && m.TicketID != c.ticketID {
			continue
		}
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		c.seen[m.ID] = struct{}{}
		c.messages = append(c.messages, m)
		added = append(added, m)
	}
	if len(added) == 0 {
		return nil
	}
	slices.SortStableFunc(c.messages, compareMessages)
	slices.SortStableFunc(added, compareMessages)
	return added
}

func compareMessages(a, b model.Message) int {
	if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
		return n
	}
	return cmp.Compare(a.ID, b.ID)
}

// Messages returns a copy of the conversation.
func (c *Conversation) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return model.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
