package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"collab_editor/internal/config"
	"collab_editor/internal/domain"
	"collab_editor/internal/repository"
	"collab_editor/internal/repository/mocks"
	"collab_editor/internal/service"
	"collab_editor/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventKind_DispatchTableIsExhaustive(t *testing.T) {
	h := newHarness(t)
	for kind := EventKind(0); kind < eventKindCount; kind++ {
		require.NotEmpty(t, kind.String(), "kind %d has no name", kind)
		require.NotNil(t, h.relay.handlers[kind], "kind %s has no handler", kind)

		parsed, ok := ParseEventKind(kind.String())
		require.True(t, ok)
		require.Equal(t, kind, parsed)
	}
	_, ok := ParseEventKind("conde-change")
	require.False(t, ok)
	require.Equal(t, "unknown", eventKindCount.String())
}

func TestRelay_JoinBroadcastsMembershipToEveryone(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")

	h.join(t, "A", roomR, "ada")
	first := payloadOf[JoinedPayload](t, a.last(t))
	req.Len(first.Members, 1)

	h.join(t, "B", roomR, "bob")

	for _, p := range []*recordingPeer{a, b} {
		env := p.last(t)
		req.Equal(OutJoined, env.Event)
		joined := payloadOf[JoinedPayload](t, env)
		req.Equal([]Member{{ConnectionID: "A", DisplayName: "ada"}, {ConnectionID: "B", DisplayName: "bob"}}, joined.Members)
		req.Equal("bob", joined.DisplayName)
		req.Equal("B", joined.ConnectionID)
	}
}

func TestRelay_DuplicateJoinDoesNotDuplicateMembership(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.join(t, "A", roomR, "ada")
	h.join(t, "A", roomR, "ada")

	require.Equal(t, []string{"A"}, h.directory.MembersOf(roomR))
	require.Equal(t, []string{roomR}, h.registry.Rooms("A"))
	require.Len(t, payloadOf[JoinedPayload](t, a.last(t)).Members, 1)
}

func TestRelay_CodeChangeNeverEchoesToSender(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.connect("A"), h.connect("B"), h.connect("C")
	for _, id := range []string{"A", "B", "C"} {
		h.join(t, id, roomR, id)
	}
	a.reset()
	b.reset()
	c.reset()

	h.emit(t, "A", "code-change", CodeChangeRequest{RoomID: roomR, Code: "x=1"})

	require.Empty(t, a.events())
	for _, p := range []*recordingPeer{b, c} {
		env := p.last(t)
		require.Equal(t, OutCodeChange, env.Event)
		require.JSONEq(t, `{"code":"x=1"}`, string(env.Data))
	}
}

func TestRelay_SyncCodeIsUnicast(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.connect("A"), h.connect("B"), h.connect("C")
	for _, id := range []string{"A", "B", "C"} {
		h.join(t, id, roomR, id)
	}
	a.reset()
	b.reset()
	c.reset()

	h.emit(t, "A", "sync-code", SyncCodeRequest{TargetConnectionID: "C", Code: "y=2"})

	require.Empty(t, a.events())
	require.Empty(t, b.events())
	require.Equal(t, []string{OutCodeChange}, c.events())
	require.Equal(t, "y=2", payloadOf[CodePayload](t, c.last(t)).Code)
}

func TestRelay_CursorUpdateCarriesSenderIdentity(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	a.reset()

	h.emit(t, "A", "cursor-position", map[string]any{
		"roomId":   roomR,
		"position": map[string]int{"line": 3, "ch": 14},
	})

	require.Empty(t, a.events())
	env := b.last(t)
	require.Equal(t, OutCursorUpdate, env.Event)
	update := payloadOf[CursorUpdatePayload](t, env)
	require.Equal(t, "A", update.ConnectionID)
	require.Equal(t, "ada", update.DisplayName)
	require.JSONEq(t, `{"line":3,"ch":14}`, string(update.Position))
}

func TestRelay_UserTypingExcludesSender(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	a.reset()

	h.emit(t, "A", "user-typing", UserTypingRequest{RoomID: roomR, DisplayName: "ada", IsTyping: true})

	require.Empty(t, a.events())
	typing := payloadOf[UserTypingPayload](t, b.last(t))
	require.True(t, typing.IsTyping)
	require.Equal(t, "ada", typing.DisplayName)
}

func TestRelay_LeaveNotifiesRemainingMembers(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	a.reset()

	h.emit(t, "A", "leave", LeaveRequest{RoomID: roomR})

	require.Equal(t, []string{"B"}, h.directory.MembersOf(roomR))
	require.Empty(t, h.registry.Rooms("A"))
	require.Empty(t, a.events())
	gone := payloadOf[DisconnectedPayload](t, b.last(t))
	require.Equal(t, DisconnectedPayload{ConnectionID: "A", DisplayName: "ada"}, gone)

	b.reset()
	h.emit(t, "A", "leave", LeaveRequest{RoomID: roomR})
	require.Empty(t, b.events())
}

func TestRelay_BadFramesProduceErrorForSenderOnly(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	a.reset()
	b.reset()

	h.relay.Handle(context.Background(), Sender{ConnectionID: "A"}, []byte("{not json"))
	require.Equal(t, "Malformed event", payloadOf[ErrorPayload](t, a.last(t)).Message)

	h.emit(t, "A", "explode", map[string]string{})
	require.Equal(t, "Unknown event", payloadOf[ErrorPayload](t, a.last(t)).Message)

	h.relay.Handle(context.Background(), Sender{ConnectionID: "A"}, []byte(`{"event":"join","data":"oops"}`))
	require.Equal(t, "Malformed event", payloadOf[ErrorPayload](t, a.last(t)).Message)

	h.emit(t, "A", "code-change", CodeChangeRequest{Code: "x"})
	require.Equal(t, "roomId is required", payloadOf[ErrorPayload](t, a.last(t)).Message)

	require.Equal(t, []string{OutError, OutError, OutError, OutError}, a.events())
	require.Empty(t, b.events())
}

func TestRelay_ChatMessageBroadcastsStoredRecord(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")

	h.emit(t, "A", "chat-message", ChatMessageRequest{
		RoomID:          roomR,
		DisplayName:     "ada",
		UserID:          7,
		Body:            "hello",
		ClientTimestamp: "1999-01-01T00:00:00Z",
	})

	for _, p := range []*recordingPeer{a, b} {
		env := p.last(t)
		req.Equal(OutChatMessage, env.Event)
		msg := payloadOf[ChatMessagePayload](t, env)
		req.Equal(int64(1), msg.ID)
		req.Equal(int64(7), msg.UserID)
		req.Equal("hello", msg.Body)
		req.True(h.clock.Now().Equal(msg.Timestamp))
	}
}

func TestRelay_ChatMessageUsesAuthenticatedIdentity(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	sender := Sender{ConnectionID: "A", Identity: &domain.Identity{UserID: 42, Username: "ada"}}
	h.emitAs(t, sender, "join", JoinRequest{RoomID: roomR})

	h.emitAs(t, sender, "chat-message", ChatMessageRequest{RoomID: roomR, UserID: 1, Body: "hi"})

	msg := payloadOf[ChatMessagePayload](t, a.last(t))
	require.Equal(t, int64(42), msg.UserID)
	require.Equal(t, "ada", msg.DisplayName)
}

func TestRelay_ChatHistoryIsOrderedAndUnicast(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")

	for i, body := range []string{"m1", "m2", "m3"} {
		from := []string{"A", "B", "A"}[i]
		h.emit(t, from, "chat-message", ChatMessageRequest{RoomID: roomR, UserID: int64(i + 1), Body: body})
		h.clock.Advance(time.Second)
	}
	a.reset()
	b.reset()

	h.emit(t, "B", "chat-history", ChatHistoryRequest{RoomID: roomR})

	req.Empty(a.events())
	env := b.last(t)
	req.Equal(OutChatHistory, env.Event)
	history := payloadOf[ChatHistoryPayload](t, env)
	req.Len(history.Messages, 3)
	for i, body := range []string{"m1", "m2", "m3"} {
		req.Equal(body, history.Messages[i].Body)
	}
}

func TestRelay_ChatHistoryStorageFailureSendsEmptyHistoryThenError(t *testing.T) {
	ctrl := gomock.NewController(t)
	chatRepo := mocks.NewMockChatRepository(ctrl)
	chatRepo.EXPECT().ListMessages(gomock.Any(), roomR, 0).Return(nil, errors.New("db down"))

	chat := service.NewChatService(chatRepo, repository.NewMemoryWorkspaceRepository(), nil,
		config.ChatConfig{DeleteWindow: 5 * time.Minute}, nil, logger.Nop())
	h := newHarnessWithChat(t, chat, nil, chatRepo, nil)
	a := h.connect("A")

	h.emit(t, "A", "chat-history", ChatHistoryRequest{RoomID: roomR})

	require.Equal(t, []string{OutChatHistory, OutError}, a.events())
	require.JSONEq(t, `{"messages":[]}`, string(a.frames[0].Data))
	require.Equal(t, "Failed to load chat history", payloadOf[ErrorPayload](t, a.last(t)).Message)
}

func TestRelay_DeleteMessageAuthorization(t *testing.T) {
	const authorID = int64(7)

	tests := []struct {
		name      string
		requester int64
		elapsed   time.Duration
		wantError string
	}{
		{name: "author at 4:59", requester: authorID, elapsed: 4*time.Minute + 59*time.Second},
		{name: "author at 5:01", requester: authorID, elapsed: 5*time.Minute + time.Second, wantError: "You can only delete messages within 5 minutes of sending"},
		{name: "stranger", requester: 8, elapsed: time.Second, wantError: "You do not have permission to delete this message"},
		{name: "owner much later", requester: ownerID, elapsed: 72 * time.Hour},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a, b := h.connect("A"), h.connect("B")
			h.join(t, "A", roomR, "ada")
			h.join(t, "B", roomR, "bob")
			h.emit(t, "A", "chat-message", ChatMessageRequest{RoomID: roomR, UserID: authorID, Body: "oops"})
			messageID := payloadOf[ChatMessagePayload](t, a.last(t)).ID
			h.clock.Advance(tt.elapsed)
			a.reset()
			b.reset()

			h.emit(t, "A", "chat-delete-message", ChatDeleteMessageRequest{RoomID: roomR, MessageID: messageID, UserID: tt.requester})

			count, err := h.chat.CountMessages(context.Background(), roomR)
			require.NoError(t, err)
			if tt.wantError != "" {
				require.Equal(t, []string{OutError}, a.events())
				require.Equal(t, tt.wantError, payloadOf[ErrorPayload](t, a.last(t)).Message)
				require.Empty(t, b.events())
				require.Equal(t, int64(1), count)
				return
			}
			for _, p := range []*recordingPeer{a, b} {
				require.Equal(t, []string{OutChatMessageDeleted}, p.events())
				require.Equal(t, messageID, payloadOf[ChatMessageDeletedPayload](t, p.last(t)).MessageID)
			}
			require.Zero(t, count)
		})
	}
}

func TestRelay_DeleteMessageNotFound(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.join(t, "A", roomR, "ada")

	h.emit(t, "A", "chat-delete-message", ChatDeleteMessageRequest{RoomID: "unknown", MessageID: 1, UserID: ownerID})
	require.Equal(t, "Workspace not found", payloadOf[ErrorPayload](t, a.last(t)).Message)

	h.emit(t, "A", "chat-delete-message", ChatDeleteMessageRequest{RoomID: roomR, MessageID: 999, UserID: ownerID})
	require.Equal(t, "Message not found", payloadOf[ErrorPayload](t, a.last(t)).Message)
}

func TestRelay_DeleteAll(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	h.emit(t, "A", "chat-message", ChatMessageRequest{RoomID: roomR, UserID: 7, Body: "one"})
	h.emit(t, "B", "chat-message", ChatMessageRequest{RoomID: roomR, UserID: 8, Body: "two"})
	a.reset()
	b.reset()

	h.emit(t, "A", "chat-delete-all", ChatDeleteAllRequest{RoomID: roomR, UserID: 7})
	req.Equal("Only workspace owner can delete all messages", payloadOf[ErrorPayload](t, a.last(t)).Message)
	req.Empty(b.events())
	count, err := h.chat.CountMessages(ctx, roomR)
	req.NoError(err)
	req.Equal(int64(2), count)

	a.reset()
	h.emit(t, "A", "chat-delete-all", ChatDeleteAllRequest{RoomID: roomR, UserID: ownerID})
	count, err = h.chat.CountMessages(ctx, roomR)
	req.NoError(err)
	req.Zero(count)
	for _, p := range []*recordingPeer{a, b} {
		env := p.last(t)
		req.Equal(OutChatAllDeleted, env.Event)
		req.Empty(env.Data)
	}
}

type panickingChat struct {
	service.ChatService
}

func (panickingChat) PostMessage(context.Context, string, int64, string, string) (*domain.ChatMessage, error) {
	panic("nil map write")
}

func TestRelay_HandlerPanicIsRecovered(t *testing.T) {
	h := newHarnessWithChat(t, panickingChat{}, nil, nil, nil)
	a, b := h.connect("A"), h.connect("B")
	h.join(t, "A", roomR, "ada")
	h.join(t, "B", roomR, "bob")
	b.reset()

	require.NotPanics(t, func() {
		h.emit(t, "A", "chat-message", ChatMessageRequest{RoomID: roomR, UserID: 1, Body: "x"})
	})
	require.Equal(t, "Internal server error", payloadOf[ErrorPayload](t, a.last(t)).Message)
	require.Empty(t, b.events())

	h.emit(t, "A", "code-change", CodeChangeRequest{RoomID: roomR, Code: "still alive"})
	require.Equal(t, "still alive", payloadOf[CodePayload](t, b.last(t)).Code)
}

func TestRelay_ChatMessageRequiresUser(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.join(t, "A", roomR, "ada")

	h.emit(t, "A", "chat-message", json.RawMessage(`{"roomId":"room-r","body":"anonymous"}`))
	require.Equal(t, "userId is required", payloadOf[ErrorPayload](t, a.last(t)).Message)
}
