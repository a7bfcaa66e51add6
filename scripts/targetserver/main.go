// Command targetserver runs a local HTTP or WebSocket target for exercising
// volley during development.
//
//	go run ./scripts/targetserver -mode http -port 8080
//	go run ./scripts/targetserver -mode websocket -port 8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	mode := flag.String("mode", "http", "Server mode: http, websocket")
	port := flag.Int("port", 0, "Listening port")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	switch *mode {
	case "http":
		log.Fatal(runHTTPServer(*port))
	case "websocket":
		log.Fatal(runWebSocketServer(*port))
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runHTTPServer(port int) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	// /slow?delay=250ms holds the response for the given duration.
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		delay := 100 * time.Millisecond
		if d, err := time.ParseDuration(r.URL.Query().Get("delay")); err == nil {
			delay = d
		}
		time.Sleep(delay)
		fmt.Fprintln(w, "ok")
	})

	// /flaky?rate=0.2 fails roughly that fraction of requests with a 500.
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		rate := 0.5
		if f, err := strconv.ParseFloat(r.URL.Query().Get("rate"), 64); err == nil {
			rate = f
		}
		if rand.Float64() < rate {
			http.Error(w, "induced failure", http.StatusInternalServerError)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"checks": map[string]string{"db": "up", "cache": "up"},
		})
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("HTTP target listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func runWebSocketServer(port int) error {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("WebSocket echo target listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
