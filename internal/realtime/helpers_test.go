package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"collab_editor/internal/config"
	"collab_editor/internal/repository"
	"collab_editor/internal/service"
	"collab_editor/pkg/logger"

	"github.com/stretchr/testify/require"
)

const (
	roomR   = "room-r"
	ownerID = int64(100)
)

// recordingPeer запоминает все принятые кадры
type recordingPeer struct {
	id string

	mu     sync.Mutex
	frames []Envelope
	full   bool
	panics bool
}

func newRecordingPeer(id string) *recordingPeer {
	return &recordingPeer{id: id}
}

func (p *recordingPeer) ID() string { return p.id }

func (p *recordingPeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.panics {
		panic("transport exploded")
	}
	if p.full {
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(err)
	}
	p.frames = append(p.frames, env)
	return true
}

func (p *recordingPeer) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, f.Event)
	}
	return out
}

// envelopes возвращает копию принятых кадров в порядке приема
func (p *recordingPeer) envelopes() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.frames...)
}

func (p *recordingPeer) last(t *testing.T) Envelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	require.NotEmpty(t, p.frames, "peer %s received nothing", p.id)
	return p.frames[len(p.frames)-1]
}

func (p *recordingPeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

func payloadOf[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	relay      *Relay
	registry   *Registry
	directory  *Directory
	clock      *fakeClock
	chat       repository.ChatRepository
	workspaces *repository.MemoryWorkspaceRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	workspaces := repository.NewMemoryWorkspaceRepository()
	workspaces.SetOwner(roomR, ownerID)
	repos := repository.NewMemoryRepositories(workspaces, clock.Now)

	chat := service.NewChatService(repos.Chat, repos.Workspace,
		service.NewAuditService(repos.Audit, logger.Nop()),
		config.ChatConfig{DeleteWindow: 5 * time.Minute, MaxMessageLength: 2000},
		clock.Now, logger.Nop())

	return newHarnessWithChat(t, chat, clock, repos.Chat, workspaces)
}

func newHarnessWithChat(t *testing.T, chat service.ChatService, clock *fakeClock, repo repository.ChatRepository, workspaces *repository.MemoryWorkspaceRepository) *harness {
	t.Helper()
	registry := NewRegistry()
	directory := NewDirectory(logger.Nop())
	return &harness{
		relay:      NewRelay(registry, directory, chat, logger.Nop()),
		registry:   registry,
		directory:  directory,
		clock:      clock,
		chat:       repo,
		workspaces: workspaces,
	}
}

func (h *harness) connect(id string) *recordingPeer {
	p := newRecordingPeer(id)
	h.relay.Connect(p)
	return p
}

func (h *harness) emit(t *testing.T, from, event string, payload any) {
	t.Helper()
	h.emitAs(t, Sender{ConnectionID: from}, event, payload)
}

func (h *harness) emitAs(t *testing.T, from Sender, event string, payload any) {
	t.Helper()
	env, err := NewEnvelope(event, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	// t.Context() requires go 1.24; equivalent context cancelled at test cleanup
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.relay.Handle(ctx, from, raw)
}

// encodeFrame кодирует кадр заранее, чтобы горутины теста не вызывали require
func encodeFrame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	env, err := NewEnvelope(event, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

// replayRoster восстанавливает список участников так, как его видит клиент:
// joined заменяет список целиком, disconnected убирает одного
func replayRoster(t *testing.T, frames []Envelope) map[string]string {
	t.Helper()
	view := make(map[string]string)
	for _, env := range frames {
		switch env.Event {
		case OutJoined:
			joined := payloadOf[JoinedPayload](t, env)
			view = make(map[string]string, len(joined.Members))
			for _, m := range joined.Members {
				view[m.ConnectionID] = m.DisplayName
			}
		case OutDisconnected:
			delete(view, payloadOf[DisconnectedPayload](t, env).ConnectionID)
		}
	}
	return view
}

func (h *harness) join(t *testing.T, connID, roomID, name string) {
	t.Helper()
	h.emit(t, connID, "join", JoinRequest{RoomID: roomID, DisplayName: name})
}
