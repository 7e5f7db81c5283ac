package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"primenumbers/core/types"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsHandshakeTimeout = 10 * time.Second
	subscriberBuffer   = 64

	methodSubscribe    = "prnt_subscribe"
	methodSubscription = "prnt_subscription"
)

// EventBatch is the set of events one committed operation produced.
type EventBatch struct {
	Seq       uint64         `json:"seq"`
	Op        string         `json:"op"`
	BlockTime uint64         `json:"blockTime"`
	Events    []*types.Event `json:"events"`
}

// SubscribeParams narrows a subscription to the listed event types. An empty
// list receives every batch.
type SubscribeParams struct {
	Types []string `json:"types"`
}

type subscriber struct {
	id    string
	types map[string]struct{}
	ch    chan EventBatch
}

func (s *subscriber) filter(batch EventBatch) (EventBatch, bool) {
	if len(s.types) == 0 {
		return batch, len(batch.Events) > 0
	}
	out := batch
	out.Events = nil
	for _, evt := range batch.Events {
		if evt == nil {
			continue
		}
		if _, ok := s.types[evt.Type]; ok {
			out.Events = append(out.Events, evt)
		}
	}
	return out, len(out.Events) > 0
}

// Hub fans committed event batches out to websocket subscribers. It is a
// core.EventSink; Record runs under the protocol lock so it never blocks, and
// a subscriber whose buffer is full is dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

// Record implements core.EventSink.
func (h *Hub) Record(_ context.Context, seq uint64, op string, blockTime uint64, events []*types.Event) error {
	batch := EventBatch{Seq: seq, Op: op, BlockTime: blockTime, Events: events}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		out, ok := sub.filter(batch)
		if !ok {
			continue
		}
		select {
		case sub.ch <- out:
		default:
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned channel is closed by cancel
// or when the subscriber falls behind.
func (h *Hub) Subscribe(params SubscribeParams) (string, <-chan EventBatch, func()) {
	sub := &subscriber{
		id: uuid.NewString(),
		ch: make(chan EventBatch, subscriberBuffer),
	}
	for _, t := range params.Types {
		if t = strings.TrimSpace(t); t != "" {
			if sub.types == nil {
				sub.types = make(map[string]struct{})
			}
			sub.types[t] = struct{}{}
		}
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub.id]; ok {
			delete(h.subs, sub.id)
			close(sub.ch)
		}
	}
	return sub.id, sub.ch, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type subscriptionNotice struct {
	Subscription string     `json:"subscription"`
	Result       EventBatch `json:"result"`
}

type notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  subscriptionNotice `json:"params"`
}

// handleSubscribe upgrades to a websocket, expects a prnt_subscribe request as
// the first message and then streams prnt_subscription notifications.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "subscriptions disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	conn.SetReadLimit(s.cfg.MaxRequestBytes)

	ctx := r.Context()
	if err := s.streamEvents(ctx, conn); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			s.logger.Debug("subscription ended", slog.String("request_id", requestIDFrom(ctx)), slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	readCtx, cancelRead := context.WithTimeout(ctx, wsHandshakeTimeout)
	_, data, err := conn.Read(readCtx)
	cancelRead()
	if err != nil {
		return err
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		return writeWS(ctx, conn, RPCResponse{JSONRPC: jsonRPCVersion, Error: newError(http.StatusBadRequest, codeParseError, "invalid JSON payload", err.Error())})
	}
	if strings.TrimSpace(req.Method) != methodSubscribe {
		return writeWS(ctx, conn, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method)})
	}
	var params SubscribeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			return writeWS(ctx, conn, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: invalidParams("invalid subscription filter: %v", err)})
		}
	}

	id, batches, cancel := s.hub.Subscribe(params)
	defer cancel()
	if err := writeWS(ctx, conn, RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: id}); err != nil {
		return err
	}

	// The client sends nothing further; CloseRead handles its close frame.
	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
			}
			msg := notification{
				JSONRPC: jsonRPCVersion,
				Method:  methodSubscription,
				Params:  subscriptionNotice{Subscription: id, Result: batch},
			}
			if err := writeWS(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
