package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/offlinekit/edgecache/control"
	"github.com/offlinekit/edgecache/fetch"
)

const sourceHeader = "X-Edgecache-Source"

var tracer = otel.Tracer("github.com/offlinekit/edgecache/gateway")

// Handler returns the gateway's HTTP surface: the caching proxy plus the
// control endpoints.
//
//	GET  /healthz       liveness probe
//	POST /control       JSON control command (set-strategy, clear-caches, ...)
//	GET  /events        server-sent notice stream for listening clients
//	*                   proxied through the strategy router
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("POST /control", g.handleControl)
	mux.HandleFunc("GET /events", g.handleEvents)
	mux.HandleFunc("/", g.handleProxy)
	return mux
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "gateway.proxy")
	defer span.End()

	req := fetch.Request{
		Method: r.Method,
		URL:    strings.TrimSuffix(g.cfg.Upstream, "/") + r.URL.RequestURI(),
		Header: flattenHeader(r.Header),
	}
	if !req.IsGET() {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}
		req.Body = body
	}
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.full", req.URL),
	)

	resp := g.router.Handle(ctx, req)

	span.SetAttributes(
		attribute.Int("http.status_code", resp.Status),
		attribute.String("edgecache.source", string(resp.Source)),
	)

	for name, value := range resp.Header {
		w.Header().Set(name, value)
	}
	w.Header().Set(sourceHeader, string(resp.Source))
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		span.RecordError(err)
	}
}

func (g *Gateway) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd control.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, fmt.Sprintf("invalid command: %v", err), http.StatusBadRequest)
		return
	}

	result, err := g.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, control.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		g.logger.WarnContext(r.Context(), "encode control result", slog.String("error", err.Error()))
	}
}

// handleEvents streams hub notices to the client as server-sent events
// until the client disconnects or the hub shuts down.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := g.hub.Subscribe(uuid.Must(uuid.NewV7()).String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		notice, err := sub.Receive(r.Context())
		if err != nil {
			return
		}
		payload, err := json.Marshal(notice)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// flattenHeader keeps the first value of each header, which is all the
// upstream contract needs.
func flattenHeader(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name := range header {
		flat[name] = header.Get(name)
	}
	return flat
}
