package realtime

import (
	"context"
	"log/slog"
)

// Hub tracks live connections by user. All map access happens on the Run
// goroutine; other goroutines talk to it through channels.
type Hub struct {
	log *slog.Logger

	clients map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	disconnect chan disconnectRequest

	done chan struct{}
}

type disconnectRequest struct {
	userID int64
	reply  chan int
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		disconnect: make(chan disconnectRequest),
		done:       make(chan struct{}),
	}
}

// Run serves hub requests until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for uid := range h.clients {
				h.drop(uid)
			}
			return
		case c := <-h.register:
			set, ok := h.clients[c.identity.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.identity.UserID] = set
			}
			set[c] = struct{}{}
		case c := <-h.unregister:
			set := h.clients[c.identity.UserID]
			if _, ok := set[c]; ok {
				delete(set, c)
				close(c.quit)
				if len(set) == 0 {
					delete(h.clients, c.identity.UserID)
				}
			}
		case req := <-h.disconnect:
			req.reply <- h.drop(req.userID)
		}
	}
}

// DisconnectUser closes every live connection of userID and reports how many
// there were.
func (h *Hub) DisconnectUser(userID int64) int {
	req := disconnectRequest{userID: userID, reply: make(chan int, 1)}

	select {
	case h.disconnect <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(userID int64) int {
	set := h.clients[userID]
	for c := range set {
		close(c.quit)
	}
	delete(h.clients, userID)

	if n := len(set); n > 0 {
		h.log.Info("connections closed", slog.Int64("uid", userID), slog.Int("count", n))
		return n
	}

	return 0
}
