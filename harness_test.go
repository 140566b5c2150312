package ironpigeon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockRelay is an in-process inbox relay for tests: create, list with
// optional long-poll, post, fetch, delete with owner-code auth.
type mockRelay struct {
	t  *testing.T
	mu sync.Mutex

	server    *httptest.Server
	inboxes   map[string]*mockInbox
	nextInbox int

	// deletes records every item URL a DELETE removed (or attempted).
	deletes []string
	// failPost maps an inbox ID to a status code its notification POSTs
	// should fail with.
	failPost map[string]int
	// listHook, when set, runs before a listing is answered; returning
	// true means the hook wrote the response itself.
	listHook func(w http.ResponseWriter, r *http.Request) bool
}

type mockInbox struct {
	ownerCode string
	nextItem  int
	order     []string
	items     map[string][]byte
}

func newMockRelay(t *testing.T) *mockRelay {
	t.Helper()
	m := &mockRelay{
		t:        t,
		inboxes:  make(map[string]*mockInbox),
		failPost: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockRelay) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/create" && r.Method == http.MethodPost:
		m.handleCreate(w)
	case strings.Contains(r.URL.Path, "/item/"):
		m.handleItem(w, r)
	case strings.HasPrefix(r.URL.Path, "/inbox/"):
		m.handleInbox(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *mockRelay) handleCreate(w http.ResponseWriter) {
	m.mu.Lock()
	m.nextInbox++
	id := strconv.Itoa(m.nextInbox)
	inbox := &mockInbox{
		ownerCode: "owner-" + id,
		items:     make(map[string][]byte),
	}
	m.inboxes[id] = inbox
	m.mu.Unlock()

	fmt.Fprintf(w, `{"MessageReceivingEndpoint":%q,"InboxOwnerCode":%q}`,
		m.server.URL+"/inbox/"+id, inbox.ownerCode)
}

func (m *mockRelay) authorized(r *http.Request, inbox *mockInbox) bool {
	return r.Header.Get("Authorization") == "Bearer "+inbox.ownerCode
}

func (m *mockRelay) handleInbox(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/inbox/")

	m.mu.Lock()
	inbox := m.inboxes[id]
	m.mu.Unlock()
	if inbox == nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !m.authorized(r, inbox) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if m.listHook != nil && m.listHook(w, r) {
			return
		}
		m.writeListing(w, id, inbox)

	case http.MethodPost:
		m.mu.Lock()
		status := m.failPost[id]
		m.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		inbox.nextItem++
		itemID := strconv.Itoa(inbox.nextItem)
		inbox.items[itemID] = body
		inbox.order = append(inbox.order, itemID)
		m.mu.Unlock()

	case http.MethodDelete:
		if !m.authorized(r, inbox) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		location := r.URL.Query().Get("notification")
		m.mu.Lock()
		m.deletes = append(m.deletes, location)
		itemID := location[strings.LastIndex(location, "/")+1:]
		pointerExists := false
		for i, iid := range inbox.order {
			if iid == itemID {
				pointerExists = true
				inbox.order = append(inbox.order[:i], inbox.order[i+1:]...)
				break
			}
		}
		delete(inbox.items, itemID)
		m.mu.Unlock()
		if !pointerExists {
			w.WriteHeader(http.StatusNotFound)
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *mockRelay) writeListing(w http.ResponseWriter, id string, inbox *mockInbox) {
	m.mu.Lock()
	entries := make([]string, 0, len(inbox.order))
	for _, itemID := range inbox.order {
		entries = append(entries, fmt.Sprintf(`{"Location":%q,"ReceivedUtc":%q}`,
			m.server.URL+"/inbox/"+id+"/item/"+itemID,
			time.Now().UTC().Format(time.RFC3339)))
	}
	m.mu.Unlock()
	fmt.Fprintf(w, `{"Items":[%s]}`, strings.Join(entries, ","))
}

func (m *mockRelay) handleItem(w http.ResponseWriter, r *http.Request) {
	// Path shape: /inbox/<id>/item/<itemID>
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/inbox/"), "/item/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	inbox := m.inboxes[parts[0]]
	var body []byte
	var exists bool
	if inbox != nil {
		body, exists = inbox.items[parts[1]]
	}
	m.mu.Unlock()

	if inbox == nil || !m.authorized(r, inbox) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !exists {
		http.NotFound(w, r)
		return
	}
	w.Write(body)
}

// dropItemBody removes every stored notification body of an inbox while
// keeping the listing pointers, simulating relay-side expiry between list
// and fetch.
func (m *mockRelay) dropItemBody(inboxURL string) {
	id := inboxURL[strings.LastIndex(inboxURL, "/")+1:]
	m.mu.Lock()
	defer m.mu.Unlock()
	inbox := m.inboxes[id]
	for itemID := range inbox.items {
		delete(inbox.items, itemID)
	}
}

// itemCount returns how many items an inbox currently holds.
func (m *mockRelay) itemCount(inboxURL string) int {
	id := inboxURL[strings.LastIndex(inboxURL, "/")+1:]
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inboxes[id].order)
}

// rawItems returns the stored notification bodies of an inbox in order.
func (m *mockRelay) rawItems(inboxURL string) [][]byte {
	id := inboxURL[strings.LastIndex(inboxURL, "/")+1:]
	m.mu.Lock()
	defer m.mu.Unlock()
	inbox := m.inboxes[id]
	bodies := make([][]byte, 0, len(inbox.order))
	for _, itemID := range inbox.order {
		bodies = append(bodies, inbox.items[itemID])
	}
	return bodies
}

// memBlobStore is an in-memory BlobStore served over HTTP so references
// carry real fetchable URLs.
type memBlobStore struct {
	mu      sync.Mutex
	server  *httptest.Server
	blobs   map[string][]byte
	uploads int
}

func newMemBlobStore(t *testing.T) *memBlobStore {
	t.Helper()
	s := &memBlobStore{blobs: make(map[string][]byte)}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		blob, ok := s.blobs[strings.TrimPrefix(r.URL.Path, "/")]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(blob)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *memBlobStore) Upload(ctx context.Context, blob []byte, expiresUTC time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	name := "blob-" + strconv.Itoa(s.uploads)
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.blobs[name] = stored
	return s.server.URL + "/" + name, nil
}

// tamper flips one byte of every stored blob.
func (s *memBlobStore) tamper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, blob := range s.blobs {
		blob[0] ^= 0x01
	}
}

// drop removes every stored blob so fetches 404.
func (s *memBlobStore) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.blobs {
		delete(s.blobs, name)
	}
}

// quietLogger discards log output in tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestChannel creates an endpoint with a fresh inbox at the mock relay
// and a channel wired to the given blob store.
func newTestChannel(t *testing.T, relay *mockRelay, store BlobStore, opts ...Option) *Channel {
	t.Helper()

	own, err := NewOwnEndpoint(NewCryptoProvider())
	if err != nil {
		t.Fatalf("NewOwnEndpoint: %v", err)
	}

	opts = append([]Option{
		WithBlobStore(store),
		WithLogger(quietLogger()),
	}, opts...)

	channel, err := New(own, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := channel.CreateInbox(context.Background(), relay.server.URL); err != nil {
		t.Fatalf("CreateInbox: %v", err)
	}
	return channel
}
