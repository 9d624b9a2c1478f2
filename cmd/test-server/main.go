// Command test-server runs a local demonstration of the sync queue: a fake
// backend that can be made to fail on demand, a connectivity toggle, and a
// control API to submit writes and watch the queue drain.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shopstack/syncqueue/pkg/syncqueue"
)

var (
	client       syncqueue.Client
	connectivity *syncqueue.ManualConnectivity

	// backendFailing makes the fake backend return 500s, to exercise the
	// failed-operation path.
	backendFailing atomic.Bool
)

func main() {
	// 1. Fake backend, standing in for the real sync server.
	backendMux := http.NewServeMux()
	backendMux.HandleFunc("/api/", backendHandler)
	backend := &http.Server{Addr: ":9090", Handler: backendMux}
	go func() {
		if err := backend.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Backend server failed: %v", err)
		}
	}()

	// 2. Configure the sync queue.
	config := syncqueue.DefaultConfig()
	config.BaseURL = "http://localhost:9090"
	config.Storage.Path = "test-server.db"
	config.Sync.Interval = 10 * time.Second
	config.Sync.GracePeriod = 3 * time.Second
	config.Sync.PollInterval = 1 * time.Second

	// Connectivity is toggled through the control API instead of probed.
	connectivity = syncqueue.NewManualConnectivity(true)

	var err error
	client, err = syncqueue.New(config, syncqueue.WithConnectivitySignal(connectivity))
	if err != nil {
		log.Fatalf("Failed to create sync queue client: %v", err)
	}
	defer client.Close()

	client.SetEnabled(true)

	ctx := context.Background()
	log.Println("Starting sync queue...")
	if err := client.Start(ctx); err != nil {
		log.Fatalf("Failed to start sync queue: %v", err)
	}
	log.Println("✓ Sync queue started")

	// 3. Control API.
	http.HandleFunc("/write", writeHandler)
	http.HandleFunc("/status", statusHandler)
	http.HandleFunc("/connectivity", connectivityHandler)
	http.HandleFunc("/backend/failing", backendFailingHandler)
	http.HandleFunc("/sync", syncHandler)
	http.HandleFunc("/reset", resetHandler)
	http.HandleFunc("/clear", clearHandler)

	log.Println("")
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║           SYNC QUEUE TEST SERVER                           ║")
	log.Println("╠════════════════════════════════════════════════════════════╣")
	log.Println("║  Control API (port 8080):                                  ║")
	log.Println("║    POST /write?method=POST&endpoint=/api/sales  {payload}  ║")
	log.Println("║    GET  /status              - Queue state                 ║")
	log.Println("║    POST /connectivity?online=false - Toggle connectivity   ║")
	log.Println("║    POST /backend/failing?failing=true - Make backend 500   ║")
	log.Println("║    POST /sync                - Trigger a replay pass       ║")
	log.Println("║    POST /reset               - Reset failed operations     ║")
	log.Println("║    POST /clear               - Clear the queue             ║")
	log.Println("╠════════════════════════════════════════════════════════════╣")
	log.Println("║  Fake backend on port 9090 (/api/...)                      ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Println("")

	go func() {
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Fatalf("Control server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("\nReceived shutdown signal...")
	backend.Close()
}

// backendHandler is the fake sync server. It accepts any /api/ write
// unless failure mode is on.
func backendHandler(w http.ResponseWriter, r *http.Request) {
	if backendFailing.Load() {
		log.Printf("[BACKEND] %s %s -> 500 (failure mode)", r.Method, r.URL.Path)
		http.Error(w, "backend is down for maintenance", http.StatusInternalServerError)
		return
	}

	log.Printf("[BACKEND] %s %s -> 200", r.Method, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":       true,
		"received": time.Now().Format(time.RFC3339),
	})
}

func writeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	method := r.URL.Query().Get("method")
	if method == "" {
		method = http.MethodPost
	}
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		endpoint = "/api/sales"
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	result, err := client.Do(r.Context(), method, endpoint, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Queued {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"queued":      true,
			"operationId": result.OperationID,
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"queued":     false,
		"statusCode": result.StatusCode,
		"body":       string(result.Body),
	})
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	status := client.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"operations":   status.Operations,
		"pendingCount": status.PendingCount,
		"failedCount":  status.FailedCount,
		"isSyncing":    status.IsSyncing,
		"isEnabled":    status.IsEnabled,
		"online":       status.Online,
		"lastSyncTime": status.LastSyncTime,
	})
}

func connectivityHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	online := r.URL.Query().Get("online") != "false"
	connectivity.Set(online)
	// Apply the change now instead of waiting for the next poll.
	client.CheckConnectivity(r.Context())

	log.Printf("Connectivity set to online=%v", online)
	w.WriteHeader(http.StatusNoContent)
}

func backendFailingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failing := r.URL.Query().Get("failing") == "true"
	backendFailing.Store(failing)
	log.Printf("Backend failure mode set to %v", failing)
	w.WriteHeader(http.StatusNoContent)
}

func syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := client.SyncNow(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"started": started})
}

func resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reset := client.ResetFailedOperations()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"reset": reset})
}

func clearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	client.ClearAllOperations()
	w.WriteHeader(http.StatusNoContent)
}
