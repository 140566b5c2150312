// Package ironpigeon provides end-to-end encrypted, asynchronous message
// delivery between endpoints that never need to be online at the same time.
//
// Senders upload an encrypted payload blob to a content-addressed store,
// then deposit a small encrypted payload reference into each recipient's
// inbox hosted by an untrusted relay. Recipients poll their inbox, decrypt
// each reference, fetch and verify the payload blob, and acknowledge by
// deleting the inbox item.
//
// Basic usage:
//
//	provider := ironpigeon.NewCryptoProvider()
//	own, err := ironpigeon.NewOwnEndpoint(provider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	channel, err := ironpigeon.New(own,
//	    ironpigeon.WithBlobStore(store),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := channel.CreateInbox(ctx, "https://relay.example.com"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Send a payload to a recipient.
//	payload := &ironpigeon.Payload{Content: []byte("hello"), ContentType: "text/plain"}
//	_, err = channel.Post(ctx, payload, []*ironpigeon.Endpoint{recipient},
//	    time.Now().UTC().Add(time.Hour))
//
//	// Receive pending payloads.
//	received, err := channel.Receive(ctx, ironpigeon.WithLongPoll())
//	for _, p := range received {
//	    fmt.Printf("%s\n", p.Content)
//	    _ = channel.DeleteInboxItem(ctx, p)
//	}
package ironpigeon
