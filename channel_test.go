package ironpigeon

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopback(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	payload := &Payload{Content: []byte{0xDE, 0xAD, 0xBE, 0xEF}, ContentType: "application/octet-stream"}
	expires := time.Now().UTC().Add(10 * time.Minute)

	ref, err := alice.Post(ctx, payload, []*Endpoint{&alice.Endpoint().Endpoint}, expires)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ref.Location == "" {
		t.Fatal("reference has no location")
	}

	received, err := alice.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("received %d payloads, want 1", len(received))
	}
	got := received[0]
	if !bytes.Equal(got.Content, payload.Content) {
		t.Errorf("content = %x, want %x", got.Content, payload.Content)
	}
	if got.ContentType != payload.ContentType {
		t.Errorf("content type = %q, want %q", got.ContentType, payload.ContentType)
	}
	if got.ReferenceLocation == "" {
		t.Error("reference location not populated")
	}

	// Acknowledge and verify the inbox is now empty.
	if err := alice.DeleteInboxItem(ctx, got); err != nil {
		t.Fatalf("DeleteInboxItem: %v", err)
	}
	received, err = alice.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive after delete: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("received %d payloads after delete, want 0", len(received))
	}
}

func TestTwoRecipientsShareOneUpload(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)
	bob := newTestChannel(t, relay, store)
	carol := newTestChannel(t, relay, store)

	ctx := context.Background()
	payload := &Payload{Content: []byte("group message"), ContentType: "text/plain"}
	recipients := []*Endpoint{&bob.Endpoint().Endpoint, &carol.Endpoint().Endpoint}

	_, err := alice.Post(ctx, payload, recipients, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	if store.uploads != 1 {
		t.Errorf("blob uploads = %d, want 1", store.uploads)
	}
	for _, ch := range []*Channel{bob, carol} {
		if n := relay.itemCount(ch.Endpoint().MessageReceivingEndpoint); n != 1 {
			t.Errorf("inbox for %s holds %d items, want 1", ch.Endpoint().Thumbprint(ch.crypto), n)
		}
		received, err := ch.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if len(received) != 1 || !bytes.Equal(received[0].Content, payload.Content) {
			t.Fatalf("recipient did not receive the payload: %+v", received)
		}
	}
}

func TestTamperedBlobIsRejected(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	payload := &Payload{Content: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	_, err := alice.Post(ctx, payload, []*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	store.tamper()

	_, err = alice.Receive(ctx)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("Receive error = %v, want hash mismatch", err)
	}
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("hash mismatch should also match ErrInvalidMessage, got %v", err)
	}
}

func TestMisdirectedNotificationIsRejected(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)
	bob := newTestChannel(t, relay, store)
	carol := newTestChannel(t, relay, store)

	// Let Carol hold Bob's decryption key so the captured notification is
	// readable in her inbox; the signed recipient binding must still name
	// Bob and fail her check.
	carol.own.EncryptionPrivateKey = bob.own.EncryptionPrivateKey
	carol.own.EncryptionPublicKey = bob.own.EncryptionPublicKey

	ctx := context.Background()
	payload := &Payload{Content: []byte("for bob only")}
	_, err := alice.Post(ctx, payload, []*Endpoint{&bob.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	// Eve re-posts Bob's notification verbatim into Carol's inbox.
	captured := relay.rawItems(bob.Endpoint().MessageReceivingEndpoint)
	if len(captured) != 1 {
		t.Fatalf("captured %d notifications, want 1", len(captured))
	}
	resp, err := http.Post(carol.Endpoint().MessageReceivingEndpoint+"?lifetime=60",
		"application/octet-stream", bytes.NewReader(captured[0]))
	if err != nil {
		t.Fatalf("re-post: %v", err)
	}
	resp.Body.Close()

	_, err = carol.Receive(ctx)
	if !errors.Is(err, ErrMisdirected) {
		t.Fatalf("Receive error = %v, want misdirected", err)
	}

	// Bob still receives his copy.
	received, err := bob.Receive(ctx)
	if err != nil || len(received) != 1 {
		t.Fatalf("bob Receive = %v, %v", received, err)
	}
}

func TestExpiredBlobPointerIsSkipped(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	payload := &Payload{Content: []byte("soon gone")}
	_, err := alice.Post(ctx, payload, []*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	store.drop()

	received, err := alice.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("received %d payloads, want 0", len(received))
	}
	if len(relay.deletes) != 1 {
		t.Fatalf("relay recorded %d deletes, want 1", len(relay.deletes))
	}
}

func TestVanishedNotificationIsSkipped(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	_, err := alice.Post(ctx, &Payload{Content: []byte("x")},
		[]*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	relay.dropItemBody(alice.Endpoint().MessageReceivingEndpoint)

	received, err := alice.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("received %d payloads, want 0", len(received))
	}
	if len(relay.deletes) == 0 {
		t.Fatal("expected the stale pointer to be deleted")
	}
}

func TestLongPollTimeoutIsRetried(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)

	var listCalls atomic.Int32
	relay.listHook = func(w http.ResponseWriter, r *http.Request) bool {
		if listCalls.Add(1) == 1 {
			// Exceed the client timeout so the first listing fails with a
			// transport-level timeout while the caller's context is alive.
			time.Sleep(300 * time.Millisecond)
		}
		return false
	}

	alice := newTestChannel(t, relay, store,
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))

	ctx := context.Background()
	_, err := alice.Post(ctx, &Payload{Content: []byte("eventually")},
		[]*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	received, err := alice.Receive(ctx, WithLongPoll())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("received %d payloads, want 1", len(received))
	}
	if listCalls.Load() < 2 {
		t.Fatalf("list called %d times, want at least 2", listCalls.Load())
	}
}

func TestReceiveCancellation(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)

	relay.listHook = func(w http.ResponseWriter, r *http.Request) bool {
		// Hold the long-poll open until the client goes away.
		<-r.Context().Done()
		return true
	}

	alice := newTestChannel(t, relay, store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := alice.Receive(ctx, WithLongPoll())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Receive error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation took %v, want prompt return", elapsed)
	}
}

func TestFanOutEnumeratesFailedRecipients(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)
	bob := newTestChannel(t, relay, store)
	carol := newTestChannel(t, relay, store)
	dave := newTestChannel(t, relay, store)

	// Carol's relay misbehaves.
	carolInbox := carol.Endpoint().MessageReceivingEndpoint
	relay.failPost[carolInbox[strings.LastIndex(carolInbox, "/")+1:]] = http.StatusInternalServerError

	ctx := context.Background()
	recipients := []*Endpoint{
		&bob.Endpoint().Endpoint,
		&carol.Endpoint().Endpoint,
		&dave.Endpoint().Endpoint,
	}
	_, err := alice.Post(ctx, &Payload{Content: []byte("partial")}, recipients,
		time.Now().UTC().Add(time.Hour))

	var postErr *PostError
	if !errors.As(err, &postErr) {
		t.Fatalf("Post error = %v, want *PostError", err)
	}
	if len(postErr.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(postErr.Failures))
	}
	if got := postErr.Failures[0].Recipient.MessageReceivingEndpoint; got != carolInbox {
		t.Errorf("failed recipient = %s, want %s", got, carolInbox)
	}

	// The other recipients' posts completed.
	for _, ch := range []*Channel{bob, dave} {
		if n := relay.itemCount(ch.Endpoint().MessageReceivingEndpoint); n != 1 {
			t.Errorf("inbox holds %d items, want 1", n)
		}
	}
}

func TestPostPayloadRequiresUTCExpiry(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	local := time.Now().In(time.FixedZone("UTC+1", 3600)).Add(time.Hour)
	_, err := alice.PostPayload(context.Background(), &Payload{Content: []byte("x")}, local)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("PostPayload error = %v, want precondition", err)
	}
}

func TestPostReferenceRequiresRecipients(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ref := &PayloadReference{Location: "https://blobs.example/x"}
	err := alice.PostReference(context.Background(), ref, nil)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("PostReference error = %v, want precondition", err)
	}
}

func TestPostPayloadRequiresBlobStore(t *testing.T) {
	own, err := NewOwnEndpoint(NewCryptoProvider())
	if err != nil {
		t.Fatal(err)
	}
	channel, err := New(own, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	_, err = channel.PostPayload(context.Background(), &Payload{Content: []byte("x")},
		time.Now().UTC().Add(time.Hour))
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("PostPayload error = %v, want precondition", err)
	}
}

func TestCreateInboxTwiceFails(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	err := alice.CreateInbox(context.Background(), relay.server.URL)
	if !errors.Is(err, ErrInboxAlreadyCreated) {
		t.Fatalf("CreateInbox error = %v, want already created", err)
	}
}

func TestReceiveRequiresInbox(t *testing.T) {
	own, err := NewOwnEndpoint(NewCryptoProvider())
	if err != nil {
		t.Fatal(err)
	}
	channel, err := New(own, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := channel.Receive(context.Background()); !errors.Is(err, ErrNoInbox) {
		t.Fatalf("Receive error = %v, want no inbox", err)
	}
}

func TestProgressCallbackOrder(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := alice.Post(ctx, &Payload{Content: []byte{byte(i)}},
			[]*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}

	var seen [][]byte
	received, err := alice.Receive(ctx, WithProgress(func(p *Payload) {
		seen = append(seen, p.Content)
	}))
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(received) != 3 || len(seen) != 3 {
		t.Fatalf("received %d, progress %d, want 3 each", len(received), len(seen))
	}
	for i, p := range received {
		if !bytes.Equal(p.Content, seen[i]) {
			t.Errorf("progress order diverges at %d", i)
		}
	}
}

func TestListInbox(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	items, err := alice.ListInbox(ctx, false)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}

	_, err = alice.Post(ctx, &Payload{Content: []byte("x")},
		[]*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	items, err = alice.ListInbox(ctx, false)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	if len(items) != 1 || items[0].Location == "" || items[0].ReceivedUTC.IsZero() {
		t.Fatalf("items = %+v", items)
	}
}

func TestDeleteInboxItemIdempotent(t *testing.T) {
	relay := newMockRelay(t)
	store := newMemBlobStore(t)
	alice := newTestChannel(t, relay, store)

	ctx := context.Background()
	_, err := alice.Post(ctx, &Payload{Content: []byte("once")},
		[]*Endpoint{&alice.Endpoint().Endpoint}, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	received, err := alice.Receive(ctx)
	if err != nil || len(received) != 1 {
		t.Fatalf("Receive = %v, %v", received, err)
	}

	if err := alice.DeleteInboxItem(ctx, received[0]); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := alice.DeleteInboxItem(ctx, received[0]); err != nil {
		t.Fatalf("second delete should succeed on 404, got: %v", err)
	}
}
