// Package sse pushes server-side stream updates (identity changes,
// appointment and notification snapshots, sound cues) to connected UI clients
// over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Event is one message pushed to UI clients.
type Event struct {
	Name string
	Data any
}

type client struct {
	id string
	ch chan Event
}

// Manager fans events out to every connected client. A Manager must be
// started with Run before serving connections.
type Manager struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	events     chan Event
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, 64),
	}
}

// Run owns the client map; all registration and delivery goes through here.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.clients[c.id] = c
			log.Printf("[SSE] Client connected: %s (%d total)", c.id, len(m.clients))
		case c := <-m.unregister:
			if _, ok := m.clients[c.id]; ok {
				delete(m.clients, c.id)
				close(c.ch)
			}
			log.Printf("[SSE] Client disconnected: %s (%d total)", c.id, len(m.clients))
		case ev := <-m.events:
			for _, c := range m.clients {
				select {
				case c.ch <- ev:
				default:
					// Slow client; drop rather than stall the fan-out.
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client.
func (m *Manager) Broadcast(name string, data any) {
	select {
	case m.events <- Event{Name: name, Data: data}:
	default:
		log.Printf("[SSE] Event queue full, dropping %s", name)
	}
}

// ServeHTTP streams events to one UI client until it disconnects.
func (m *Manager) ServeHTTP(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	cl := &client{id: uuid.New().String(), ch: make(chan Event, 16)}
	m.register <- cl
	defer func() { m.unregister <- cl }()

	notify := c.Request.Context().Done()
	for {
		select {
		case ev, open := <-cl.ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				log.Printf("[SSE] Failed to marshal %s event: %v", ev.Name, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
