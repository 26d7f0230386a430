package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tansuo/paperchat/internal/convo"
	"github.com/tansuo/paperchat/internal/dispatch"
	"github.com/tansuo/paperchat/internal/domain"
	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/protocol"
	"github.com/tansuo/paperchat/internal/store"
)

type noopBackend struct{}

func (noopBackend) ResetSession(context.Context, string) error { return nil }
func (noopBackend) RestoreSession(context.Context, string, []protocol.HistoryMessage) error {
	return nil
}

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *convo.Store) {
	t.Helper()
	cs := convo.New(store.NewMemoryStore(), noopBackend{}, logging.New(nil, "silent"))
	require.NoError(t, cs.Load(context.Background()))
	return dispatch.New(cs, logging.New(nil, "silent")), cs
}

func feed(t *testing.T, d *dispatch.Dispatcher, frames ...string) {
	t.Helper()
	for _, frame := range frames {
		evt, err := protocol.ParseEvent([]byte(frame))
		require.NoError(t, err)
		d.Dispatch(evt)
	}
}

func TestDispatch_FullTurn(t *testing.T) {
	d, cs := newDispatcher(t)
	require.NoError(t, cs.AppendUserMessage("hello"))

	feed(t, d,
		`{"type":"log","level":"info","message":"searching the database"}`,
		`{"type":"tool_call","tool_name":"search","tool_args":"{\"query\":\"attention\"}"}`,
		`{"type":"tool_result","tool_name":"search","result":"3 pages found"}`,
		`{"type":"assistant_message","message":"hi"}`,
		`{"type":"done"}`,
	)

	assert.Equal(t, domain.TurnIdle, cs.Turn())

	msgs := cs.Messages()
	require.Len(t, msgs, 2)
	assistant := msgs[1]
	assert.Equal(t, domain.RoleAssistant, assistant.Role)
	assert.Equal(t, "hi", assistant.Content)

	require.Len(t, assistant.Appendages, 2)
	assert.Equal(t, domain.AppendageLog, assistant.Appendages[0].Kind)
	assert.Equal(t, "searching the database", assistant.Appendages[0].Log.Text)

	calls := assistant.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, domain.ToolCompleted, calls[0].Status)
	assert.Equal(t, "3 pages found", calls[0].Result)
}

func TestDispatch_RepeatedToolCallOverwrites(t *testing.T) {
	d, cs := newDispatcher(t)
	require.NoError(t, cs.AppendUserMessage("hello"))

	feed(t, d,
		`{"type":"tool_call","tool_name":"search","tool_args":"{\"query\":\"first\"}"}`,
		`{"type":"tool_call","tool_name":"search","tool_args":"{\"query\":\"second\"}"}`,
		`{"type":"done"}`,
	)

	calls := cs.Messages()[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"query":"second"}`, calls[0].Args)
	assert.Equal(t, domain.ToolRunning, calls[0].Status)
}

func TestDispatch_ErrorEventFailsTurn(t *testing.T) {
	d, cs := newDispatcher(t)
	require.NoError(t, cs.AppendUserMessage("hello"))

	feed(t, d,
		`{"type":"log","level":"info","message":"working"}`,
		`{"type":"error","error":"model overloaded"}`,
	)

	assert.Equal(t, domain.TurnIdle, cs.Turn())
	msgs := cs.Messages()
	assert.Equal(t, "Error: model overloaded", msgs[len(msgs)-1].Content)
}

func TestDispatch_NotionLinkAfterAssistantMessage(t *testing.T) {
	d, cs := newDispatcher(t)
	require.NoError(t, cs.AppendUserMessage("save this paper"))

	feed(t, d,
		`{"type":"assistant_message","message":"Saved."}`,
		`{"type":"notion_link","result":{"title":"Attention Is All You Need","url":"https://notion.so/abc"}}`,
		`{"type":"done"}`,
	)

	assistant := cs.Messages()[1]
	assert.Equal(t, "Saved.", assistant.Content)
	require.Len(t, assistant.Appendages, 1)
	require.Equal(t, domain.AppendageLink, assistant.Appendages[0].Kind)
	assert.Equal(t, "Attention Is All You Need", assistant.Appendages[0].Link.Title)
	assert.Equal(t, "https://notion.so/abc", assistant.Appendages[0].Link.URL)
}

func TestDispatch_StragglersAfterDoneDropped(t *testing.T) {
	d, cs := newDispatcher(t)
	require.NoError(t, cs.AppendUserMessage("hello"))

	feed(t, d,
		`{"type":"assistant_message","message":"hi"}`,
		`{"type":"done"}`,
		`{"type":"log","level":"info","message":"late"}`,
		`{"type":"tool_call","tool_name":"search","tool_args":""}`,
		`{"type":"assistant_message","message":"late answer"}`,
		`{"type":"error","error":"late failure"}`,
	)

	// None of the stragglers may reopen the turn or touch the transcript.
	assert.Equal(t, domain.TurnIdle, cs.Turn())
	msgs := cs.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Empty(t, msgs[1].Appendages)
}

func TestDispatch_DoneWithoutTurnIsNoop(t *testing.T) {
	d, cs := newDispatcher(t)

	feed(t, d, `{"type":"done"}`)

	assert.Equal(t, domain.TurnIdle, cs.Turn())
	assert.Empty(t, cs.Messages())
}
