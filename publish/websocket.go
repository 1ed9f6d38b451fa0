package publish

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/speed"
)

const (
	// ClientBuffer is the number of samples queued per client before new
	// samples are dropped for it.
	ClientBuffer = 64

	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// WebSocket streams samples as JSON text messages to every connected client.
type WebSocket struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	wg      sync.WaitGroup
	closed  bool
}

func NewWebSocket() *WebSocket {
	return &WebSocket{clients: make(map[*websocket.Conn]chan []byte)}
}

// Add queues a sample for every client. It never blocks on a slow client.
func (ws *WebSocket) Add(s speed.Sample) {
	data, err := encode(s)
	if err != nil {
		monitoring.Logf("websocket: %v", err)
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for conn, queue := range ws.clients {
		select {
		case queue <- data:
		default:
			monitoring.Debugf("websocket: client %s is slow, sample dropped", conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (ws *WebSocket) Clients() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

// ServeHTTP upgrades the request and streams samples until the client leaves.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Debugf("websocket: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	queue := make(chan []byte, ClientBuffer)
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		conn.Close()
		return
	}
	ws.clients[conn] = queue
	ws.wg.Add(1)
	ws.mu.Unlock()
	monitoring.Debugf("websocket: client %s connected", conn.RemoteAddr())

	go ws.write(conn, queue)

	// Incoming messages are ignored; a read error means the client is gone
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	ws.drop(conn)
}

func (ws *WebSocket) write(conn *websocket.Conn, queue chan []byte) {
	defer ws.wg.Done()
	for data := range queue {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			monitoring.Debugf("websocket: client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			ws.drop(conn)
			// Drain so Add never blocks on a dead client
			for range queue {
			}
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	conn.Close()
}

// drop removes a client and stops its writer.
func (ws *WebSocket) drop(conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if queue, ok := ws.clients[conn]; ok {
		delete(ws.clients, conn)
		close(queue)
	}
}

// Close disconnects all clients and waits for their writers to finish.
func (ws *WebSocket) Close() {
	ws.mu.Lock()
	ws.closed = true
	for conn, queue := range ws.clients {
		delete(ws.clients, conn)
		close(queue)
	}
	ws.mu.Unlock()
	ws.wg.Wait()
}
