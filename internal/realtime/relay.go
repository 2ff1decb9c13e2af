package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/samber/lo"

	"collab_editor/internal/domain"
	"collab_editor/internal/service"
	apperrors "collab_editor/pkg/errors"
	"collab_editor/pkg/logger"
)

// Sender - соединение, от которого пришло событие
type Sender struct {
	ConnectionID string
	// Identity задан, если соединение прошло аутентификацию при апгрейде
	Identity *domain.Identity
}

// userID: для аутентифицированного соединения id берется из токена
func (s Sender) userID(claimed int64) (int64, error) {
	if s.Identity != nil {
		return s.Identity.UserID, nil
	}
	if claimed == 0 {
		return 0, apperrors.ErrInvalidIdentity
	}
	return claimed, nil
}

type handlerFunc func(ctx context.Context, from Sender, data json.RawMessage) error

// Relay разбирает входящие кадры и раскладывает события по получателям.
// События одного соединения обрабатываются последовательно его read pump.
// Вход, выход и обрыв соединения выполняются целиком под membership:
// изменение членства, снимок участников и постановка кадров в очереди.
type Relay struct {
	membership sync.Mutex

	registry  *Registry
	directory *Directory
	presence  *Presence
	chat      service.ChatService
	handlers  [eventKindCount]handlerFunc
	log       logger.Logger
}

func NewRelay(registry *Registry, directory *Directory, chat service.ChatService, log logger.Logger) *Relay {
	r := &Relay{
		registry:  registry,
		directory: directory,
		presence:  NewPresence(registry, directory, log),
		chat:      chat,
		log:       log,
	}
	r.handlers = [eventKindCount]handlerFunc{
		EventJoin:              r.handleJoin,
		EventLeave:             r.handleLeave,
		EventCodeChange:        r.handleCodeChange,
		EventSyncCode:          r.handleSyncCode,
		EventCursorPosition:    r.handleCursorPosition,
		EventUserTyping:        r.handleUserTyping,
		EventChatMessage:       r.handleChatMessage,
		EventChatHistory:       r.handleChatHistory,
		EventChatDeleteMessage: r.handleChatDeleteMessage,
		EventChatDeleteAll:     r.handleChatDeleteAll,
	}
	return r
}

// Connect регистрирует транспорт нового соединения
func (r *Relay) Connect(p Peer) {
	r.directory.Attach(p)
	r.log.Debug("Connection attached", "connection_id", p.ID())
}

// Disconnect вызывается транспортом ровно один раз при обрыве
func (r *Relay) Disconnect(connID string) {
	r.membership.Lock()
	defer r.membership.Unlock()
	r.presence.Depart(connID)
}

// CloseAll закрывает транспорт всех соединений при остановке сервера
func (r *Relay) CloseAll() int {
	closed := 0
	for _, p := range r.directory.Peers() {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
			closed++
		}
	}
	return closed
}

func (r *Relay) ConnectionCount() int {
	return r.directory.ConnectionCount()
}

func (r *Relay) RoomCount() int {
	return r.directory.RoomCount()
}

// Handle обрабатывает один кадр до конца. Любая ошибка превращается
// в событие error только для отправителя.
func (r *Relay) Handle(ctx context.Context, from Sender, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.replyError(from, "", apperrors.ErrMalformedEvent)
		return
	}

	kind, ok := ParseEventKind(env.Event)
	if !ok {
		r.replyError(from, env.Event, apperrors.ErrUnknownEvent)
		return
	}

	if err := r.dispatch(ctx, kind, from, env.Data); err != nil {
		r.replyError(from, env.Event, err)
	}
}

func (r *Relay) dispatch(ctx context.Context, kind EventKind, from Sender, data json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Panic in event handler",
				"event", kind.String(), "connection_id", from.ConnectionID,
				"panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return r.handlers[kind](ctx, from, data)
}

func (r *Relay) replyError(from Sender, event string, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || errors.Is(err, apperrors.ErrStorageFailure) {
		r.log.Error("Event failed", "event", event, "connection_id", from.ConnectionID, "error", err)
	} else {
		r.log.Debug("Event rejected", "event", event, "connection_id", from.ConnectionID, "error", err)
	}

	env, encErr := NewEnvelope(OutError, ErrorPayload{Message: apperrors.ClientMessage(err)})
	if encErr != nil {
		return
	}
	if sendErr := r.directory.Unicast(from.ConnectionID, env); sendErr != nil {
		r.log.Error("Failed to send error event", "connection_id", from.ConnectionID, "error", sendErr)
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, apperrors.ErrMalformedEvent
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, apperrors.ErrMalformedEvent
	}
	if err := validatePayload(v); err != nil {
		return v, err
	}
	return v, nil
}

func (r *Relay) broadcast(roomID, event string, payload any, exclude string) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return r.directory.Broadcast(roomID, env, exclude)
}

func (r *Relay) unicast(connID, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return r.directory.Unicast(connID, env)
}

// displayNameOf: имя из запроса, иначе из реестра, иначе из токена
func (r *Relay) displayNameOf(from Sender, claimed string) string {
	if claimed != "" {
		return claimed
	}
	if name, ok := r.registry.DisplayName(from.ConnectionID); ok && name != "" {
		return name
	}
	if from.Identity != nil {
		return from.Identity.Username
	}
	return ""
}

func (r *Relay) handleJoin(_ context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[JoinRequest](data)
	if err != nil {
		return err
	}

	r.membership.Lock()
	defer r.membership.Unlock()

	displayName := r.displayNameOf(from, req.DisplayName)
	r.registry.Register(from.ConnectionID, displayName)
	if r.directory.JoinGroup(from.ConnectionID, req.RoomID) {
		r.log.Info("Connection joined room", "connection_id", from.ConnectionID, "room_id", req.RoomID, "display_name", displayName)
	}
	r.registry.AddRoom(from.ConnectionID, req.RoomID)

	members := lo.Map(r.directory.MembersOf(req.RoomID), func(id string, _ int) Member {
		name, _ := r.registry.DisplayName(id)
		return Member{ConnectionID: id, DisplayName: name}
	})

	return r.broadcast(req.RoomID, OutJoined, JoinedPayload{
		Members:      members,
		DisplayName:  displayName,
		ConnectionID: from.ConnectionID,
	}, "")
}

func (r *Relay) handleLeave(_ context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[LeaveRequest](data)
	if err != nil {
		return err
	}

	r.membership.Lock()
	defer r.membership.Unlock()

	if !r.directory.LeaveGroup(from.ConnectionID, req.RoomID) {
		return nil
	}
	r.registry.RemoveRoom(from.ConnectionID, req.RoomID)

	displayName, _ := r.registry.DisplayName(from.ConnectionID)
	r.log.Info("Connection left room", "connection_id", from.ConnectionID, "room_id", req.RoomID)
	return r.broadcast(req.RoomID, OutDisconnected, DisconnectedPayload{
		ConnectionID: from.ConnectionID,
		DisplayName:  displayName,
	}, "")
}

func (r *Relay) handleCodeChange(_ context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[CodeChangeRequest](data)
	if err != nil {
		return err
	}
	return r.broadcast(req.RoomID, OutCodeChange, CodePayload{Code: req.Code}, from.ConnectionID)
}

func (r *Relay) handleSyncCode(_ context.Context, _ Sender, data json.RawMessage) error {
	req, err := decode[SyncCodeRequest](data)
	if err != nil {
		return err
	}
	return r.unicast(req.TargetConnectionID, OutCodeChange, CodePayload{Code: req.Code})
}

func (r *Relay) handleCursorPosition(_ context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[CursorPositionRequest](data)
	if err != nil {
		return err
	}

	displayName, _ := r.registry.DisplayName(from.ConnectionID)
	return r.broadcast(req.RoomID, OutCursorUpdate, CursorUpdatePayload{
		ConnectionID: from.ConnectionID,
		DisplayName:  displayName,
		Position:     req.Position,
	}, from.ConnectionID)
}

func (r *Relay) handleUserTyping(_ context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[UserTypingRequest](data)
	if err != nil {
		return err
	}
	return r.broadcast(req.RoomID, OutUserTyping, UserTypingPayload{
		RoomID:      req.RoomID,
		DisplayName: r.displayNameOf(from, req.DisplayName),
		IsTyping:    req.IsTyping,
	}, from.ConnectionID)
}

func (r *Relay) handleChatMessage(ctx context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[ChatMessageRequest](data)
	if err != nil {
		return err
	}
	userID, err := from.userID(req.UserID)
	if err != nil {
		return err
	}

	message, err := r.chat.PostMessage(ctx, req.RoomID, userID, r.displayNameOf(from, req.DisplayName), req.Body)
	if err != nil {
		return err
	}
	return r.broadcast(req.RoomID, OutChatMessage, NewChatMessagePayload(message), "")
}

// handleChatHistory при ошибке хранилища отдает пустую историю, а затем событие error
func (r *Relay) handleChatHistory(ctx context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[ChatHistoryRequest](data)
	if err != nil {
		return err
	}

	messages, loadErr := r.chat.History(ctx, req.RoomID)
	if loadErr != nil {
		messages = nil
	}
	if err := r.unicast(from.ConnectionID, OutChatHistory, NewChatHistoryPayload(messages)); err != nil {
		return err
	}
	return loadErr
}

func (r *Relay) handleChatDeleteMessage(ctx context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[ChatDeleteMessageRequest](data)
	if err != nil {
		return err
	}
	userID, err := from.userID(req.UserID)
	if err != nil {
		return err
	}

	if err := r.chat.DeleteMessage(ctx, req.RoomID, req.MessageID, userID); err != nil {
		return err
	}
	return r.NotifyMessageDeleted(req.RoomID, req.MessageID)
}

func (r *Relay) handleChatDeleteAll(ctx context.Context, from Sender, data json.RawMessage) error {
	req, err := decode[ChatDeleteAllRequest](data)
	if err != nil {
		return err
	}
	userID, err := from.userID(req.UserID)
	if err != nil {
		return err
	}

	if _, err := r.chat.DeleteAllMessages(ctx, req.RoomID, userID); err != nil {
		return err
	}
	return r.NotifyAllDeleted(req.RoomID)
}

// NotifyMessageDeleted рассылает удаление всей комнате, включая инициатора
func (r *Relay) NotifyMessageDeleted(roomID string, messageID int64) error {
	return r.broadcast(roomID, OutChatMessageDeleted, ChatMessageDeletedPayload{MessageID: messageID}, "")
}

func (r *Relay) NotifyAllDeleted(roomID string) error {
	return r.broadcast(roomID, OutChatAllDeleted, nil, "")
}
