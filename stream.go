package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Broadcaster pushes fresh snapshots to WebSocket subscribers on a fixed
// cadence, for dashboard clients that prefer push over polling. Each
// push goes through Collector.Snapshot, so it is serialized with plain
// HTTP polls against the same sampler cache.
type Broadcaster struct {
	collector *Collector
	interval  time.Duration
	log       *zap.Logger
	upgrader  websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*websocket.Conn]bool
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func newBroadcaster(collector *Collector, interval time.Duration, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		collector:   collector,
		interval:    interval,
		log:         log,
		subscribers: make(map[*websocket.Conn]bool),
		stopCh:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (b *Broadcaster) Start() {
	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.push()
			case <-b.stopCh:
				return
			}
		}
	}()
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

func (b *Broadcaster) push() {
	b.mu.Lock()
	n := len(b.subscribers)
	b.mu.Unlock()
	if n == 0 {
		// No listeners, no sampling.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.interval)
	snap, err := b.collector.Snapshot(ctx)
	cancel()
	if err != nil {
		b.log.Warn("stream poll failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	subs := make([]*websocket.Conn, 0, len(b.subscribers))
	for conn := range b.subscribers {
		subs = append(subs, conn)
	}
	b.mu.Unlock()

	for _, conn := range subs {
		if err := conn.WriteJSON(snap); err != nil {
			b.remove(conn)
			conn.Close()
		}
	}
}

// HandleWS upgrades the connection and subscribes it to snapshot pushes.
// Clients only receive; reads just detect disconnects.
func (b *Broadcaster) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	b.subscribers[conn] = true
	b.mu.Unlock()

	go func() {
		defer func() {
			b.remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.subscribers, conn)
	b.mu.Unlock()
}
