package devserver

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Message kinds understood by the client script.
const (
	KindReload = "reload"
	KindCSS    = "css"
	KindError  = "error"
)

const heartbeatInterval = 30 * time.Second

// Message is one live reload broadcast.
type Message struct {
	Kind      string   `json:"kind"`
	Transform string   `json:"transform,omitempty"`
	Files     []string `json:"files,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Hub manages SSE clients for live reload broadcasts.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	clients  map[int]*lrClient
	recorder metrics.Recorder
	closed   bool
	// token increments on every broadcast and is sent as the SSE id.
	token int
	// lastError is replayed to clients that connect while a failure is unresolved,
	// so the overlay survives the page load that follows it.
	lastError *Message
}

type lrClient struct {
	id   int
	ch   chan frame
	done chan struct{}
}

type frame struct {
	token int
	data  []byte
}

func NewHub(recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*lrClient{}, recorder: recorder}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &lrClient{ch: make(chan frame, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	n := len(h.clients)
	var replay *frame
	if h.lastError != nil {
		if data, err := json.Marshal(h.lastError); err == nil {
			replay = &frame{token: h.token, data: data}
		}
	}
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)
	defer h.removeClient(client.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if replay != nil {
		writeFrame(bw, *replay)
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				slog.Debug("livereload ping write", logfields.Error(err))
				return
			}
		case f := <-client.ch:
			writeFrame(bw, f)
		}
		if err := bw.Flush(); err != nil {
			slog.Debug("livereload write", logfields.Error(err))
			return
		}
		flusher.Flush()
	}
}

func writeFrame(bw *bufio.Writer, f frame) {
	_, _ = bw.WriteString("id: " + strconv.Itoa(f.token) + "\n")
	_, _ = bw.WriteString("data: ")
	_, _ = bw.Write(f.data)
	_, _ = bw.WriteString("\n\n")
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// Broadcast sends msg to all clients. Clients whose buffer is full are dropped; their
// browser reconnects on its own.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("livereload encode", logfields.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.token++
	if msg.Kind == KindError {
		h.lastError = &msg
	} else {
		h.lastError = nil
	}
	f := frame{token: h.token, data: data}
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- f:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast",
		slog.String("kind", msg.Kind),
		slog.Int("clients", len(snapshot)),
		slog.Int("dropped", dropped))
}

// Shutdown disconnects all clients and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
