package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sitelocation.ai/internal/observerproto"
	"sitelocation.ai/internal/sim/game"
)

// Hub fans settled rounds out to websocket observers. It implements game.RoundLogger so it can be
// attached to a game with game.WithRoundLogger; WriteRound never blocks on a slow observer.
type Hub struct {
	log *log.Logger

	// AllowRemote disables the loopback-only check on both handlers.
	AllowRemote bool

	// PingPeriod is how often an idle connection is pinged. PongWait is how long the server waits for
	// any frame, pong included, before dropping the observer; it must exceed PingPeriod.
	PingPeriod time.Duration
	PongWait   time.Duration

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	g       *game.Game
	backlog [][]byte
	round   int
	subs    map[string]chan []byte
	closed  bool
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs:       map[string]chan []byte{},
		PingPeriod: 30 * time.Second,
		PongWait:   60 * time.Second,
	}
}

// Attach sets the game served by the bootstrap endpoint.
func (h *Hub) Attach(g *game.Game) {
	h.mu.Lock()
	h.g = g
	h.mu.Unlock()
}

// WriteRound encodes one round frame, keeps it in the backlog and offers it to every subscriber.
func (h *Hub) WriteRound(s game.RoundSummary) error {
	b, err := json.Marshal(RoundMsg(s))
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.backlog = append(h.backlog, b)
	h.round = s.Round
	for _, ch := range h.subs {
		sendLatest(ch, b)
	}
	return nil
}

// Subscribers returns the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every observer. Later rounds are dropped.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	return nil
}

// RoundMsg converts a round summary into its wire frame.
func RoundMsg(s game.RoundSummary) observerproto.RoundMsg {
	msg := observerproto.RoundMsg{
		Type:            observerproto.TypeRound,
		ProtocolVersion: observerproto.Version,
		GameID:          s.GameID,
		Round:           s.Round,
		Rounds:          s.Rounds,
		Final:           s.Final,
		Winner:          s.Winner,
		Digest:          s.Digest,
		Players:         make([]observerproto.PlayerState, 0, len(s.Players)),
	}
	for _, p := range s.Players {
		ps := observerproto.PlayerState{
			ID:          int(p.Player),
			Name:        p.Name,
			Funds:       p.Funds,
			Revenue:     p.Revenue,
			Cost:        p.Cost,
			Share:       p.Share,
			TotalStores: p.TotalStores,
			Outcome:     string(p.Turn.Outcome),
			Code:        p.Turn.Code,
		}
		for _, st := range p.Placed {
			ps.Placed = append(ps.Placed, observerproto.Store{Row: st.Pos.Row, Col: st.Pos.Col, Type: st.Type})
		}
		msg.Players = append(msg.Players, ps)
	}
	return msg
}

func (h *Hub) bootstrap() (observerproto.BootstrapResponse, bool) {
	h.mu.Lock()
	g, round := h.g, h.round
	h.mu.Unlock()
	if g == nil {
		return observerproto.BootstrapResponse{}, false
	}
	cfg := g.Config()
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		GameID:          g.ID(),
		Round:           round,
		GameParams: observerproto.GameParams{
			MapSize:           [2]int{cfg.Rows, cfg.Cols},
			Population:        int(cfg.Population),
			Seed:              cfg.Seed,
			Rounds:            cfg.Rounds,
			StartingCash:      cfg.StartingFunds,
			ProfitPerCustomer: cfg.ProfitPerCustomer,
			MaxStoresPerRound: cfg.MaxStoresPerRound,
			AllocationPolicy:  g.Policy().Name(),
		},
		Players: g.PlayerNames(),
	}
	for _, d := range cfg.Stores.Defs() {
		resp.StoreTypes = append(resp.StoreTypes, observerproto.StoreType{
			Name:                   d.ID,
			CapitalCost:            d.CapitalCost,
			OperatingCost:          d.OperatingCost,
			Attractiveness:         d.Attractiveness,
			AttractivenessConstant: d.AttractivenessConstant,
		})
	}
	return resp, true
}

func (h *Hub) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !h.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp, ok := h.bootstrap()
		if !ok {
			http.Error(rw, "no game attached", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// join registers a subscriber. With backlog set, every frame seen so far is queued first; the
// channel is sized so the backlog fits.
func (h *Hub) join(backlog bool) (string, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, false
	}
	size := 16
	if backlog {
		size += len(h.backlog)
	}
	ch := make(chan []byte, size)
	if backlog {
		for _, b := range h.backlog {
			ch <- b
		}
	}
	id := fmt.Sprintf("O%d", h.nextID.Add(1))
	h.subs[id] = ch
	return id, ch, true
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid, out, ok := h.join(sub.Backlog)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "game over"), time.Now().Add(time.Second))
			return
		}
		defer h.leave(sid)
		h.log.Printf("observer %s connected from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pingPeriod, pongWait := h.PingPeriod, h.PongWait
		if pingPeriod <= 0 || pongWait <= pingPeriod {
			pingPeriod, pongWait = 30*time.Second, 60*time.Second
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		// Writer goroutine. Rounds can be far apart, so it also keeps the connection alive with pings.
		writeErr := make(chan error, 1)
		go func() {
			ping := time.NewTicker(pingPeriod)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"), time.Now().Add(time.Second))
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: only drains control frames and detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		h.log.Printf("observer %s disconnected", sid)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
