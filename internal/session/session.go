// Package session implements the per-connection fan-out described by
// the store's session component: an ingress task reading framed
// requests, an egress task writing framed responses in FIFO order, and
// one task per active subscription.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentic-research/pathstore/api"
	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/internal/pathcodec"
	"github.com/agentic-research/pathstore/internal/watch"
)

// Operation identifies which boundary check a request is subject to.
type Operation int

const (
	OpRead Operation = iota
	OpInsert
	OpUpdate
	OpRemove
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "Read"
	case OpInsert:
		return "Insert"
	case OpUpdate:
		return "Update"
	case OpRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Permission is the boundary predicate consulted before every request
// except Unsubscribe. A false return emits Error("Permissions") and skips
// the operation.
type Permission func(op Operation, path []string) bool

// AllowAll is the default Permission: every operation is allowed.
func AllowAll(Operation, []string) bool { return true }

// Config configures a Session's optional behaviors.
type Config struct {
	// AckSubscribe, if true, makes Subscribe send an immediate empty
	// Value(null) acknowledgement before its event stream begins. The
	// source only does this on the permission-deny path; this field
	// makes the choice embedder-configurable instead of silently
	// picking one.
	AckSubscribe bool
	// Permission is consulted for every request except Unsubscribe. Nil
	// means AllowAll.
	Permission Permission
	// OutboxSize bounds the egress queue. Responses beyond this bound
	// block the producing task until the egress task drains one.
	OutboxSize int
}

func (c Config) permission() Permission {
	if c.Permission != nil {
		return c.Permission
	}
	return AllowAll
}

func (c Config) outboxSize() int {
	if c.OutboxSize > 0 {
		return c.OutboxSize
	}
	return 64
}

// Session owns one client connection: its ingress loop, egress loop,
// and subscription table.
type Session struct {
	conn   *websocket.Conn
	engine *engine.Engine
	kv     kvstore.KV
	cfg    Config

	outbox chan api.Response

	subsMu sync.Mutex
	subs   map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New wraps conn as a Session serving eng and kv under cfg.
func New(conn *websocket.Conn, eng *engine.Engine, kv kvstore.KV, cfg Config) *Session {
	return &Session{
		conn:   conn,
		engine: eng,
		kv:     kv,
		cfg:    cfg,
		outbox: make(chan api.Response, cfg.outboxSize()),
		subs:   make(map[string]context.CancelFunc),
	}
}

// Run drives the session until the connection closes or ctx is
// cancelled. It blocks until both the ingress and egress loops, and
// every subscription task, have exited.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the connection once ctx ends unblocks the ingress loop's
	// pending read, so a cancelled ctx ends the session too.
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.egressLoop(ctx)
	}()

	err := s.ingressLoop(ctx)

	cancel()
	s.cancelAllSubscriptions()
	s.wg.Wait()

	return err
}

// egressLoop exits via ctx, never via outbox closing: the outbox is
// never closed, since concurrent subscription pump tasks may still be
// sending to it at teardown and a send on a closed channel panics.
func (s *Session) egressLoop(ctx context.Context) {
	for {
		select {
		case resp := <-s.outbox:
			data, err := json.Marshal(resp)
			if err != nil {
				log.Printf("session: encode response: %v", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("session: write message: %v", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) ingressLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("session: read message: %w", err)
		}

		var req api.Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.send(api.NewErrorResponse("StorageError"))
			continue
		}

		s.dispatch(ctx, req)
	}
}

func (s *Session) send(resp api.Response) {
	s.outbox <- resp
}

func (s *Session) dispatch(ctx context.Context, req api.Request) {
	switch {
	case req.Get != nil:
		s.handleGet(ctx, req.Get)
	case req.Insert != nil:
		s.handleInsert(ctx, req.Insert)
	case req.Update != nil:
		s.handleUpdate(ctx, req.Update)
	case req.Remove != nil:
		s.handleRemove(ctx, req.Remove)
	case req.Subscribe != nil:
		s.handleSubscribe(ctx, req.Subscribe)
	case req.Unsubscribe != nil:
		s.handleUnsubscribe(req.Unsubscribe)
	default:
		s.send(api.NewErrorResponse("StorageError"))
	}
}

func (s *Session) checkPermission(op Operation, path []string) bool {
	if s.cfg.permission()(op, path) {
		return true
	}
	s.send(api.NewErrorResponse(api.ErrorKind(api.ErrPermissions)))
	return false
}

func (s *Session) handleGet(ctx context.Context, path []string) {
	if !s.checkPermission(OpRead, path) {
		return
	}
	v, err := s.engine.Get(ctx, path)
	if err != nil {
		s.send(api.NewErrorResponse(api.ErrorKind(err)))
		return
	}
	resp, err := api.NewValueResponse(v)
	if err != nil {
		s.send(api.NewErrorResponse("StorageError"))
		return
	}
	s.send(resp)
}

func (s *Session) handleInsert(ctx context.Context, pv *api.PathValue) {
	if !s.checkPermission(OpInsert, pv.Path) {
		return
	}
	var value any
	if err := json.Unmarshal(pv.Value, &value); err != nil {
		s.send(api.NewErrorResponse("SchemaMismatch"))
		return
	}
	if err := s.engine.Insert(ctx, pv.Path, value); err != nil {
		s.send(api.NewErrorResponse(api.ErrorKind(err)))
		return
	}
	resp, _ := api.NewValueResponse(nil)
	s.send(resp)
}

func (s *Session) handleUpdate(ctx context.Context, pv *api.PathValue) {
	if !s.checkPermission(OpUpdate, pv.Path) {
		return
	}
	var value any
	if err := json.Unmarshal(pv.Value, &value); err != nil {
		s.send(api.NewErrorResponse("SchemaMismatch"))
		return
	}
	if err := s.engine.Update(ctx, pv.Path, value); err != nil {
		s.send(api.NewErrorResponse(api.ErrorKind(err)))
		return
	}
	resp, _ := api.NewValueResponse(nil)
	s.send(resp)
}

func (s *Session) handleRemove(ctx context.Context, path []string) {
	if !s.checkPermission(OpRemove, path) {
		return
	}
	if err := s.engine.Remove(ctx, path); err != nil {
		s.send(api.NewErrorResponse(api.ErrorKind(err)))
		return
	}
	resp, _ := api.NewValueResponse(nil)
	s.send(resp)
}

func (s *Session) handleSubscribe(ctx context.Context, path []string) {
	if !s.checkPermission(OpRead, path) {
		return
	}

	key := string(pathcodec.Encode(path))

	s.subsMu.Lock()
	if _, exists := s.subs[key]; exists {
		s.subsMu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	s.subs[key] = cancel
	s.subsMu.Unlock()

	// Register the underlying watch synchronously, before returning
	// control to the ingress loop: any request processed after this
	// point (e.g. the mutation the client is about to send) must be
	// observed by this subscription.
	sub := watch.Subscribe(s.kv, path)

	if s.cfg.AckSubscribe {
		resp, _ := api.NewValueResponse(nil)
		s.send(resp)
	}

	s.wg.Add(1)
	go s.pumpSubscription(subCtx, sub, path)
}

func (s *Session) pumpSubscription(ctx context.Context, sub *watch.Subscription, path []string) {
	defer s.wg.Done()
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			var value *string
			if !ev.Removed {
				v := ev.Value
				value = &v
			}
			select {
			case s.outbox <- api.NewSubscriptionUpdateResponse(ev.Path, value):
			case <-ctx.Done():
				return
			}
		case err := <-sub.Errors:
			log.Printf("session: subscription at %v: %v", path, err)
			select {
			case s.outbox <- api.NewErrorResponse(api.ErrorKind(err)):
			case <-ctx.Done():
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleUnsubscribe(path []string) {
	key := string(pathcodec.Encode(path))

	s.subsMu.Lock()
	cancel, ok := s.subs[key]
	if ok {
		delete(s.subs, key)
	}
	s.subsMu.Unlock()

	if ok {
		cancel()
	}
	// Unsubscribe produces no response.
}

func (s *Session) cancelAllSubscriptions() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for key, cancel := range s.subs {
		cancel()
		delete(s.subs, key)
	}
}
