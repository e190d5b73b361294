package core

import "sync"

// Client is one live connection as seen by the core layer.
// UserID and Name are whatever identity the connection claimed on join;
// roomID is owned by the hub loop and must not be touched elsewhere.
type Client struct {
	ID       string
	UserID   string
	Name     string
	Commands chan *Command
	Events   chan *Event

	roomID   int64 // 0 when not in a room
	done     chan struct{}
	stopOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
	}
}

// stop releases the client's command pump; called by the hub on
// unregister.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Identity resolves the identity a connection claims. The product trusts
// client-asserted identities; the interface exists so a verifying
// implementation can be substituted without touching the event router.
type Identity interface {
	Resolve(userID, userName string) (string, string)
}

// ClientAssertedIdentity accepts whatever the client claims.
type ClientAssertedIdentity struct{}

func (ClientAssertedIdentity) Resolve(userID, userName string) (string, string) {
	if userName == "" {
		userName = userID
	}
	return userID, userName
}
