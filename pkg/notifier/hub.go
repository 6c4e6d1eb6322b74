package notifier

// Subscriber abstracts one connected UI session. Send must preserve call
// order; the hub delivers to each subscriber from a single goroutine, so
// every client observes events in emission order. No ordering is guaranteed
// across different subscribers.
type Subscriber interface {
	Send(payload []byte) error
	Close()
}

// Hub fans notification payloads out to connected sessions.
type Hub struct {
	clients   map[Subscriber]struct{}
	register  chan Subscriber
	unreg     chan Subscriber
	broadcast chan []byte
	stop      chan struct{}
}

func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[Subscriber]struct{}),
		register:  make(chan Subscriber),
		unreg:     make(chan Subscriber),
		broadcast: make(chan []byte),
		stop:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unreg:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
		case payload := <-h.broadcast:
			for client := range h.clients {
				if err := client.Send(payload); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
		case <-h.stop:
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[Subscriber]struct{})
			return
		}
	}
}

func (h *Hub) Register(client Subscriber) {
	h.register <- client
}

func (h *Hub) Unregister(client Subscriber) {
	h.unreg <- client
}

func (h *Hub) Broadcast(payload []byte) {
	h.broadcast <- payload
}

func (h *Hub) Stop() {
	close(h.stop)
}
