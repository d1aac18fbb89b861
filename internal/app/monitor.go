package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_calibrator/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// monitorHub fans every status update out to the connected browsers.
type monitorHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newMonitorHub() *monitorHub {
	return &monitorHub{conns: make(map[*websocket.Conn]bool)}
}

func (h *monitorHub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *monitorHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.Close()
}

func (h *monitorHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.conns, c)
			c.Close()
		}
	}
}

// RunMonitor serves a live view of the calibration session: a JSON API with
// the latest status and a websocket pushing every status and measurement
// message as it arrives.
func RunMonitor() error {
	cfg := config.Get()

	var (
		mu         sync.RWMutex
		lastStatus StatusMessage
		haveStatus bool
	)
	hub := newMonitorHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDMonitor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to status and forward to browsers
	statusToken := client.Subscribe(cfg.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s StatusMessage
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("monitor: status unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastStatus = s
		haveStatus = true
		mu.Unlock()

		hub.broadcast(msg.Payload())
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.TopicStatus)

	// Measurements go straight through to the websocket clients.
	measToken := client.Subscribe(cfg.TopicMeasurements, 0, func(_ mqtt.Client, msg mqtt.Message) {
		hub.broadcast(msg.Payload())
	})
	measToken.Wait()
	if measToken.Error() != nil {
		return measToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.TopicMeasurements)

	// 3) JSON API endpoint: latest status
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastStatus); err != nil {
			log.Printf("monitor: json encode error: %v", err)
		}
	})

	// 4) Websocket endpoint for live updates
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("monitor: websocket upgrade error: %v", err)
			return
		}
		hub.add(conn)
		log.Printf("monitor: websocket client connected from %s", r.RemoteAddr)

		// Drain the connection until the client goes away.
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.MonitorPort)
	log.Printf("monitor: web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
