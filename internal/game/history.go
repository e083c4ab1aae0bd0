package game

import (
	"github.com/fweigel/mordspiel/internal/domain"
	"github.com/fweigel/mordspiel/internal/genclient"
)

// BuildHistory maps a persona-scoped conversation to the role-tagged shape
// the generation service expects. The input must already be the union of
// player messages and the one persona's replies, in creation order; replies
// of other personas never belong here. A suspect hears every question the
// player ever asked but never another suspect's answers.
func BuildHistory(msgs []*domain.ChatMessage) []genclient.HistoryMessage {
	history := make([]genclient.HistoryMessage, 0, len(msgs))
	for _, msg := range msgs {
		history = append(history, genclient.HistoryMessage{
			Role:        msg.Role(),
			PersonaSlug: msg.PersonaSlug,
			Content:     msg.Content,
		})
	}
	return history
}

// PersonaThread is one persona's slice of the full-session history. The
// empty slug holds the player's own messages.
type PersonaThread struct {
	PersonaSlug string                `json:"persona_slug"`
	Messages    []*domain.ChatMessage `json:"messages"`
}

// GroupByPersona splits the full message list into per-author threads for
// display, keeping creation order within each thread. Threads appear in
// the order their author first spoke. This is the replay view, not chat
// context; the union rule does not apply here.
func GroupByPersona(msgs []*domain.ChatMessage) []PersonaThread {
	index := make(map[string]int)
	var threads []PersonaThread

	for _, msg := range msgs {
		i, ok := index[msg.PersonaSlug]
		if !ok {
			i = len(threads)
			index[msg.PersonaSlug] = i
			threads = append(threads, PersonaThread{PersonaSlug: msg.PersonaSlug})
		}
		threads[i].Messages = append(threads[i].Messages, msg)
	}
	return threads
}
