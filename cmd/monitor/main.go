package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
)

// ModelStatus is the aggregated view of one prediction service instance,
// assembled from its heartbeats and backpressure reports.
type ModelStatus struct {
	ModelName    string    `json:"model_name"`
	Status       string    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	FeatureCount int       `json:"feature_count"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
	LastSeen     time.Time `json:"last_seen"`
	FirstSeen    time.Time `json:"first_seen"`
	Uptime       string    `json:"uptime"`

	Pending      int64  `json:"pending_messages"`
	Active       int64  `json:"active_processing"`
	Backpressure string `json:"backpressure"`
}

type heartbeat struct {
	ModelName    string   `json:"model_name"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
	FeatureCount int      `json:"feature_count"`
	Endpoint     string   `json:"endpoint"`
	NATSTopic    string   `json:"nats_topic"`
	Version      string   `json:"version"`
}

type backpressureReport struct {
	ModelName        string `json:"model_name"`
	PendingMessages  int64  `json:"pending_messages"`
	ActiveProcessing int64  `json:"active_processing"`
	Status           string `json:"status"`
}

type fleetMonitor struct {
	nats   *nats.Conn
	mu     sync.RWMutex
	models map[string]*ModelStatus
}

func newFleetMonitor(natsURL string) (*fleetMonitor, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &fleetMonitor{
		nats:   nc,
		models: make(map[string]*ModelStatus),
	}, nil
}

func (m *fleetMonitor) start(ctx context.Context) error {
	if _, err := m.nats.Subscribe("monitoring.models.heartbeat.*", m.onHeartbeat); err != nil {
		return fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}
	if _, err := m.nats.Subscribe("monitoring.models.backpressure.*", m.onBackpressure); err != nil {
		return fmt.Errorf("failed to subscribe to backpressure reports: %w", err)
	}

	go m.expireStale(ctx)
	return nil
}

func (m *fleetMonitor) onHeartbeat(msg *nats.Msg) {
	var hb heartbeat
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		log.Printf("ignoring malformed heartbeat on %s: %v", msg.Subject, err)
		return
	}

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.models[hb.ModelName]
	if !ok {
		status = &ModelStatus{ModelName: hb.ModelName, FirstSeen: now}
		m.models[hb.ModelName] = status
	}
	status.Status = hb.Status
	status.Capabilities = hb.Capabilities
	status.FeatureCount = hb.FeatureCount
	status.Endpoint = hb.Endpoint
	status.NATSTopic = hb.NATSTopic
	status.Version = hb.Version
	status.LastSeen = now
	status.Uptime = now.Sub(status.FirstSeen).Truncate(time.Second).String()
}

func (m *fleetMonitor) onBackpressure(msg *nats.Msg) {
	var report backpressureReport
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.models[report.ModelName]
	if !ok {
		return
	}
	status.Pending = report.PendingMessages
	status.Active = report.ActiveProcessing
	status.Backpressure = report.Status
}

// expireStale flips services to offline when heartbeats stop arriving.
func (m *fleetMonitor) expireStale(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-90 * time.Second)
			m.mu.Lock()
			for _, status := range m.models {
				if status.LastSeen.Before(cutoff) {
					status.Status = "offline"
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *fleetMonitor) snapshot() []ModelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ModelStatus, 0, len(m.models))
	for _, status := range m.models {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelName < out[j].ModelName })
	return out
}

func (m *fleetMonitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.snapshot())
}

func main() {
	natsURL := flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
	httpAddr := flag.String("http", ":8090", "HTTP address for the status endpoint")
	flag.Parse()

	monitor, err := newFleetMonitor(*natsURL)
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := monitor.start(ctx); err != nil {
		log.Fatalf("monitor: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", monitor.handleStatus)
	go func() {
		log.Printf("fleet monitor listening on %s", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, mux); err != nil {
			log.Printf("http server stopped: %v", err)
		}
	}()

	// Print a periodic summary to stdout
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range monitor.snapshot() {
					log.Printf("%-20s %-8s pending=%d active=%d bp=%s uptime=%s",
						s.ModelName, s.Status, s.Pending, s.Active, s.Backpressure, s.Uptime)
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
