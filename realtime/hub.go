package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/camden-git/photowall/canvas"
	"github.com/camden-git/photowall/gesture"
	"github.com/camden-git/photowall/models"
)

// Event types sent to websocket clients, in addition to the canvas event types.
const (
	EventCaptureStarted  = "capture_started"
	EventCaptureFinished = "capture_finished"
	EventDragPreview     = "drag_preview"
	EventGestureError    = "gesture_error"
)

// Event represents a message sent to websocket clients
type Event struct {
	Type      string         `json:"type"`
	CaptureID string         `json:"capture_id,omitempty"`
	ID        string         `json:"id,omitempty"`
	Photo     *models.Photo  `json:"photo,omitempty"`
	Photos    []models.Photo `json:"photos,omitempty"`
	Offset    *models.Point  `json:"offset,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Dispatcher consumes pointer events read from clients.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev gesture.Event) error
}

// Client is one websocket connection. pressed holds the pointer ids that are
// down on this connection; only the reader goroutine touches it.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	pressed map[int]bool
}

// Options configures a Hub. All fields are optional.
type Options struct {
	Dispatcher Dispatcher
	// Snapshot supplies the collection sent to each client as it connects.
	Snapshot func() []models.Photo
	// Active reports the gesture in progress, so a client joining mid-drag
	// sees the card where it is being held.
	Active func() (gesture.Active, bool)
}

// Hub fans wall and capture events out to every websocket client and feeds
// their pointer events into the gesture controller.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex

	dispatcher Dispatcher
	snapshot   func() []models.Photo
	active     func() (gesture.Active, bool)
}

func NewHub(opts Options) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		dispatcher: opts.Dispatcher,
		snapshot:   opts.Snapshot,
		active:     opts.Active,
	}
}

// Run delivers broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.greet(client)
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount reports the connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		log.Printf("realtime: dropping %s event, broadcast channel full", event.Type)
	}
}

// StoreEvent forwards a wall change. It never blocks, so it is safe to
// subscribe to a canvas.Store.
func (h *Hub) StoreEvent(ev canvas.Event) {
	h.Broadcast(Event{Type: string(ev.Type), ID: ev.ID, Photo: ev.Photo, Photos: ev.Photos})
}

func (h *Hub) CaptureStarted(captureID string) {
	h.Broadcast(Event{Type: EventCaptureStarted, CaptureID: captureID})
}

func (h *Hub) CaptureFinished(captureID string, photo *models.Photo, err error) {
	ev := Event{Type: EventCaptureFinished, CaptureID: captureID, Photo: photo}
	if photo != nil {
		ev.ID = photo.ID
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.Broadcast(ev)
}

// DragPreview broadcasts the uncommitted displacement of a drag in progress.
func (h *Hub) DragPreview(photoID string, offset models.Point) {
	h.Broadcast(Event{Type: EventDragPreview, ID: photoID, Offset: &offset})
}

// greet queues the current wall for a client that has just registered. It runs
// inside Run, so every broadcast not yet delivered arrives after the snapshot.
func (h *Hub) greet(client *Client) {
	now := time.Now().UnixMilli()
	if h.snapshot != nil {
		h.queue(client, Event{Type: string(canvas.EventLoaded), Photos: h.snapshot(), Timestamp: now})
	}
	if h.active != nil {
		if a, ok := h.active(); ok && a.State == gesture.Dragging {
			offset := a.Offset
			h.queue(client, Event{Type: EventDragPreview, ID: a.PhotoID, Offset: &offset, Timestamp: now})
		}
	}
}

func (h *Hub) queue(client *Client, event Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal %s event: %v", event.Type, err)
		return
	}
	select {
	case client.send <- encoded:
	default:
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection, registers a client and reads its pointer
// events until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade error: %v", err)
		return
	}
	client := &Client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 256), pressed: map[int]bool{}}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// writer
	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// reader
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleInbound(r.Context(), client, data)
	}
	h.release(r.Context(), client)
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

func (h *Hub) handleInbound(ctx context.Context, client *Client, data []byte) {
	if h.dispatcher == nil {
		return
	}
	var ev gesture.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("realtime: ignoring malformed pointer event: %v", err)
		return
	}
	ev.Source = client.id
	switch ev.Type {
	case gesture.PointerDown:
		client.pressed[ev.PointerID] = true
	case gesture.PointerUp, gesture.PointerCancel:
		delete(client.pressed, ev.PointerID)
	}
	if err := h.dispatcher.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("realtime: pointer event %s rejected: %v", ev.Type, err)
		reply, mErr := json.Marshal(Event{Type: EventGestureError, ID: ev.PhotoID, Error: err.Error(), Timestamp: time.Now().UnixMilli()})
		if mErr != nil {
			return
		}
		h.mu.RLock()
		defer h.mu.RUnlock()
		if h.clients[client] {
			select {
			case client.send <- reply:
			default:
			}
		}
	}
}

// release cancels the pointers a client still held when its connection closed.
func (h *Hub) release(ctx context.Context, client *Client) {
	if h.dispatcher == nil {
		return
	}
	for pointerID := range client.pressed {
		ev := gesture.Event{Type: gesture.PointerCancel, PointerID: pointerID, Source: client.id}
		if err := h.dispatcher.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
			log.Printf("realtime: cancelling pointer %d of closed client: %v", pointerID, err)
		}
	}
	clear(client.pressed)
}
