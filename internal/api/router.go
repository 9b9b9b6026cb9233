package api

import (
	"net/http"
	"strings"
)

// ServiceName and ServiceVersion identify the API in the root banner.
const (
	ServiceName    = "crowdlens-api"
	ServiceVersion = "0.1.0"
)

// NewRouter builds the HTTP route table. Path parameters are resolved inside
// the handlers; the router only dispatches on prefix and method.
func NewRouter(streams *StreamHandlers, events *EventHandlers, presence *PresenceHandlers, health *HealthHandlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/ready", health.Ready)

	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, r)
			return
		}
		streams.CreateStream(w, r)
	})
	mux.HandleFunc("/streams/live", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		streams.LiveStreams(w, r)
	})
	mux.HandleFunc("/streams/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/streams/")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(rest, "/end"):
			streams.EndStream(w, r)
		case r.Method == http.MethodGet:
			streams.GetStream(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})

	mux.HandleFunc("/events/live", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		events.LiveEvents(w, r)
	})
	mux.HandleFunc("/events/range", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, r)
			return
		}
		events.RangeEvents(w, r)
	})
	mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/events/")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(rest, "/watch"):
			presence.Watch(w, r)
		case r.Method == http.MethodPost && strings.HasSuffix(rest, "/keepalive"):
			presence.Keepalive(w, r)
		case r.Method == http.MethodPost && strings.HasSuffix(rest, "/leave"):
			presence.Leave(w, r)
		case r.Method == http.MethodGet && strings.HasSuffix(rest, "/presence"):
			presence.GetPresence(w, r)
		case r.Method == http.MethodGet:
			events.GetEvent(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})

	// Root banner; anything else under / is a structured 404.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": ServiceName,
			"version": ServiceVersion,
		})
	})

	return mux
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
