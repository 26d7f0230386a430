// Package dispatch routes inbound push events to conversation mutations.
package dispatch

import (
	"github.com/tansuo/paperchat/internal/convo"
	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
)

// Dispatcher is a stateless router: each event type maps to exactly one
// conversation store mutator. The type switch is exhaustive over the
// closed protocol.Event set.
type Dispatcher struct {
	convo *convo.Store
	log   *logging.Logger
}

// New creates a dispatcher targeting the given conversation store.
func New(cs *convo.Store, log *logging.Logger) *Dispatcher {
	return &Dispatcher{convo: cs, log: log.Sub("dispatch")}
}

// Dispatch applies one push event to the active conversation.
func (d *Dispatcher) Dispatch(evt protocol.Event) {
	switch e := evt.(type) {
	case protocol.LogEvent:
		d.convo.AppendLogEntry(e.Level, e.Message)
	case protocol.AssistantMessageEvent:
		d.convo.CloseAssistant(e.Message)
	case protocol.ToolCallEvent:
		d.convo.UpsertToolCall(e.Name, e.Args)
	case protocol.ToolResultEvent:
		d.convo.CompleteToolCall(e.Name, e.Result)
	case protocol.NotionLinkEvent:
		d.convo.AppendLinkCard(e.Title, e.URL)
	case protocol.ErrorEvent:
		d.convo.FailTurn(e.Reason)
	case protocol.DoneEvent:
		d.convo.CompleteTurn()
	default:
		// Unknown types are filtered by the connection layer; reaching
		// here means a new Event was added without a route.
		d.log.Error().Type("event", evt).Msg("unrouted event type")
	}
}
