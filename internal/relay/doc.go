// Package relay implements the HTTP client for the inbox relay: inbox
// creation, listing, notification posting, item retrieval, and deletion.
//
// Listing, retrieval, and deletion are authenticated with the inbox owner
// code; posting a notification is deliberately unauthenticated, since the
// relay accepts deposits from arbitrary senders.
package relay
