// Note Viewer shows clinical note and expansion events as they are published.
// It consumes the Kafka topics and fans events out to browsers over WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// NoteEvent carries the fields of both note and expansion events. Neither
// event includes note or transcript text.
type NoteEvent struct {
	EventType   string `json:"eventType"`
	RequestID   string `json:"requestId"`
	Timestamp   int64  `json:"timestamp"`
	DurationMs  int64  `json:"durationMs"`
	UserType    string `json:"userType,omitempty"`
	NoteType    string `json:"noteType,omitempty"`
	Tier        string `json:"tier,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	CacheSource string `json:"cacheSource,omitempty"`
	Summarizer  string `json:"summarizer,omitempty"`

	Audience         string `json:"audience,omitempty"`
	Tone             string `json:"tone,omitempty"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"promptTokens,omitempty"`
	CompletionTokens int    `json:"completionTokens,omitempty"`
	PIIRemoved       bool   `json:"piiRemoved,omitempty"`

	Topic string `json:"topic"`
}

// Hub tracks browser connections. Each connection has its own queue so one
// slow browser does not hold up the others.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan NoteEvent
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan NoteEvent)}
}

func (h *Hub) add(conn *websocket.Conn) chan NoteEvent {
	ch := make(chan NoteEvent, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("Client connected. Total: %d", n)
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		close(ch)
		conn.Close()
		log.Printf("Client disconnected. Total: %d", n)
	}
}

// publish queues event for every client, dropping it for clients whose queue
// is full.
func (h *Hub) publish(event NoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			log.Printf("Dropping event %s for slow client %s", event.RequestID, conn.RemoteAddr())
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		ch := hub.add(conn)

		go func() {
			for event := range ch {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Write error: %v", err)
					hub.remove(conn)
					return
				}
			}
		}()

		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consume(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Failed to seek %s: %v", topic, err)
	}
	log.Printf("Consuming %s partition 0 (last %s)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		var event NoteEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Skipping malformed event at offset %d: %v", msg.Offset, err)
			continue
		}
		event.Topic = topic
		log.Printf("Received %s request=%s key=%s", event.EventType, event.RequestID, msg.Key)
		hub.publish(event)
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicNotes := flag.String("topic-notes", "clinical.notes.generated", "Note event topic")
	topicExpansions := flag.String("topic-expansions", "clinical.expansions.generated", "Expansion event topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this on start")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	brokerList := strings.Split(*brokers, ",")
	go consume(ctx, hub, brokerList, *topicNotes, *since)
	go consume(ctx, hub, brokerList, *topicExpansions, *since)

	staticFS, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))

	srv := &http.Server{Addr: ":" + *port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Note Viewer starting on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicNotes, *topicExpansions)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
