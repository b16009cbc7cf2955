package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"taskbridge/server/internal/jsonrpc"
)

// maxBodyBytes caps a single JSON-RPC message. Tool arguments are small
// strings; anything larger is a misbehaving client.
const maxBodyBytes = 1 << 20

// RequestProcessor handles decoded JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)
}

// mcpStream is one live SSE connection. Responses for requests posted under
// the stream's session ID are queued on events and written by the goroutine
// that owns the connection.
type mcpStream struct {
	id     string
	events chan []byte
}

func (s *mcpStream) push(resp jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("mcp response marshal failed: %v", err)
		return
	}
	select {
	case s.events <- data:
	default:
		log.Printf("mcp stream %s backed up, dropping response", s.id)
	}
}

// mcpTransport serves /mcp in both MCP HTTP flavors: plain request/response
// POSTs, and the SSE pairing where a GET opens a stream and POSTs tagged with
// its sessionId get their responses pushed over that stream.
type mcpTransport struct {
	processor RequestProcessor

	mu      sync.RWMutex
	streams map[string]*mcpStream
}

// Transport builds the /mcp handler around a request processor.
func Transport(processor RequestProcessor) http.Handler {
	return &mcpTransport{
		processor: processor,
		streams:   make(map[string]*mcpStream),
	}
}

func (t *mcpTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.openStream(w, r)
	case http.MethodPost:
		t.dispatch(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// openStream upgrades a GET into a server-sent event stream. The first event
// tells the client where to POST its requests.
func (t *mcpTransport) openStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s := &mcpStream{
		id:     generateRequestID(),
		events: make(chan []byte, 100),
	}
	t.mu.Lock()
	t.streams[s.id] = s
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.streams, s.id)
		t.mu.Unlock()
	}()

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp?sessionId=%s\n\n", s.id)
	flusher.Flush()
	log.Printf("mcp stream opened, session=%s client=%s", s.id, clientSubject(r.Context()))

	for {
		select {
		case data := <-s.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			log.Printf("mcp stream closed, session=%s", s.id)
			return
		}
	}
}

// dispatch decodes one JSON-RPC message and routes the response either back
// on the wire (plain POST) or onto the caller's stream (sessionId POST).
func (t *mcpTransport) dispatch(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	decodeErr := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		t.respondInline(w, r, &req, decodeErr)
		return
	}

	t.mu.RLock()
	s, ok := t.streams[sessionID]
	t.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	if decodeErr != nil {
		s.push(jsonrpc.Response{JSONRPC: "2.0", Error: &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	log.Printf("mcp request method=%s id=%v session=%s request_id=%s",
		req.Method, req.ID, sessionID, GetRequestID(r.Context()))

	result, rpcErr := t.processor.ProcessRequest(r.Context(), &req)
	switch {
	case rpcErr != nil:
		s.push(jsonrpc.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
	case req.ID != nil:
		s.push(jsonrpc.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
	w.WriteHeader(http.StatusAccepted)
}

// respondInline answers a plain POST on the same connection. Notifications
// (no request ID) are acknowledged with 202 and an empty body.
func (t *mcpTransport) respondInline(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request, decodeErr error) {
	if decodeErr != nil {
		writeResponse(w, jsonrpc.Response{JSONRPC: "2.0", Error: &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"}})
		return
	}

	log.Printf("mcp request method=%s id=%v request_id=%s",
		req.Method, req.ID, GetRequestID(r.Context()))

	result, rpcErr := t.processor.ProcessRequest(r.Context(), req)
	if rpcErr != nil {
		writeResponse(w, jsonrpc.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}
	if req.ID == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeResponse(w, jsonrpc.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func clientSubject(ctx context.Context) string {
	if c := GetClientContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}
