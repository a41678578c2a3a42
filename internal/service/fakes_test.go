package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtriage/internal/classify"
	"mailtriage/internal/folder"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/mq"
	"mailtriage/internal/queue"
)

type moveCall struct {
	MessageID string
	FolderID  string
}

type taskCall struct {
	Title string
	Body  string
	Due   time.Time
}

// fakeMailbox is an in-memory mailbox with a folder tree. Every mutating
// call is appended to calls so tests can check ordering.
type fakeMailbox struct {
	mu       sync.Mutex
	nextID   int
	children map[string][]model.Folder
	parent   map[string]string
	names    map[string]string
	unread   []model.Message
	moves    []moveCall
	tasks    []taskCall
	calls    []string
	auths    int
	lists    int

	authErr error
	listErr error
	taskErr error
	moveErr map[string]error
	onList  func(n int)
	onAuth  func()
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		children: make(map[string][]model.Folder),
		parent:   make(map[string]string),
		names:    make(map[string]string),
		moveErr:  make(map[string]error),
	}
}

// Authenticate runs onAuth once, outside the lock, before returning.
func (m *fakeMailbox) Authenticate(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.auths++
	hook, err := m.onAuth, m.authErr
	m.onAuth = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	return "tok", nil
}

func (m *fakeMailbox) ListUnreadInbox(ctx context.Context, token string) ([]model.Message, error) {
	m.mu.Lock()
	m.lists++
	n, hook, err := m.lists, m.onList, m.listErr
	out := make([]model.Message, len(m.unread))
	copy(out, m.unread)
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *fakeMailbox) MoveMessage(ctx context.Context, token, messageID, destinationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "move:"+messageID)
	if err := m.moveErr[messageID]; err != nil {
		return err
	}
	if _, ok := m.names[destinationID]; !ok {
		return &graph.APIError{Operation: "move_message", StatusCode: http.StatusNotFound, Code: "ErrorItemNotFound"}
	}
	m.moves = append(m.moves, moveCall{MessageID: messageID, FolderID: destinationID})
	return nil
}

func (m *fakeMailbox) CreateTask(ctx context.Context, token, title, body string, due time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "task:"+title)
	if m.taskErr != nil {
		return m.taskErr
	}
	m.tasks = append(m.tasks, taskCall{Title: title, Body: body, Due: due})
	return nil
}

func (m *fakeMailbox) ListChildFolders(ctx context.Context, token, parentID string) ([]model.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Folder, len(m.children[parentID]))
	copy(out, m.children[parentID])
	return out, nil
}

func (m *fakeMailbox) CreateChildFolder(ctx context.Context, token, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("f%d", m.nextID)
	m.children[parentID] = append(m.children[parentID], model.Folder{ID: id, DisplayName: name})
	m.parent[id] = parentID
	m.names[id] = name
	m.calls = append(m.calls, "create:"+name)
	return id, nil
}

// deleteFolder removes id from the tree as if the user deleted it.
func (m *fakeMailbox) deleteFolder(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parentID := m.parent[id]
	kept := m.children[parentID][:0]
	for _, f := range m.children[parentID] {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	m.children[parentID] = kept
	delete(m.names, id)
	delete(m.parent, id)
}

// path returns the folder names from the root down to id, e.g.
// "Immobili/Edificio A/Fatture".
func (m *fakeMailbox) path(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var parts []string
	for {
		name, ok := m.names[id]
		if !ok {
			break
		}
		parts = append([]string{name}, parts...)
		id = m.parent[id]
	}
	return strings.Join(parts, "/")
}

func (m *fakeMailbox) movedTo(messageID string) string {
	m.mu.Lock()
	var dest string
	for _, mv := range m.moves {
		if mv.MessageID == messageID {
			dest = mv.FolderID
		}
	}
	m.mu.Unlock()
	if dest == "" {
		return ""
	}
	return m.path(dest)
}

func (m *fakeMailbox) snapshot() (moves []moveCall, tasks []taskCall, calls []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]moveCall(nil), m.moves...), append([]taskCall(nil), m.tasks...), append([]string(nil), m.calls...)
}

func (m *fakeMailbox) authCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auths
}

var fixedNow = time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)

type testEnv struct {
	mailbox  *fakeMailbox
	queue    *queue.PendingQueue
	router   *Router
	approval *Approval
	poller   *Poller
	skeleton model.Skeleton
}

func newTestEnv(t *testing.T, isolate bool) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, isolate, nil)
}

func newTestEnvWithCache(t *testing.T, isolate bool, cache folder.Cache) *testEnv {
	t.Helper()

	mb := newFakeMailbox()
	log := zap.NewNop()
	resolver := folder.NewResolver(mb, cache, log)
	q := queue.NewPendingQueue()
	events := mq.NewNopProducer()

	router := NewRouter(mb, resolver, q, events, log)
	router.now = func() time.Time { return fixedNow }

	approval := NewApproval(mb, resolver, q, events, "inbox", log)
	approval.now = router.now

	classifier := classify.NewClassifier([]string{"Edificio A", "Condominio Rossi"})
	poller := NewPoller(mb, resolver, classifier, router, PollerConfig{
		Root:            "inbox",
		Properties:      "Immobili",
		Operational:     "Operativo",
		NeedsReview:     "Da Gestire",
		Interval:        10 * time.Millisecond,
		IsolateFailures: isolate,
	}, log)

	skeleton, err := poller.Initialize(context.Background())
	require.NoError(t, err)

	return &testEnv{
		mailbox:  mb,
		queue:    q,
		router:   router,
		approval: approval,
		poller:   poller,
		skeleton: skeleton,
	}
}
