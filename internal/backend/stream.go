package backend

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/market"
	"github.com/web3guy0/polybot/internal/order"
	"github.com/web3guy0/polybot/internal/price"
)

const (
	streamReconnectDelay = 5 * time.Second
	streamPingInterval   = 30 * time.Second
)

// streamTick is the venue-agnostic wire shape the stream backend
// expects from its JSON feed: one price/depth update per market.
type streamTick struct {
	Ticker string  `json:"ticker"`
	YesBid float64 `json:"yes_bid"`
	YesAsk float64 `json:"yes_ask"`
	NoBid  float64 `json:"no_bid"`
	NoAsk  float64 `json:"no_ask"`
	Volume float64 `json:"volume"`
}

// OrderSender is the venue-specific side a Stream backend delegates
// order placement to; Stream itself only owns the read side (price
// cache and order book mirror). Stream does not parse fill or status
// messages and does not report them to the engine or its tracker.
type OrderSender interface {
	SendOrder(o order.Order) (string, error)
	SendCancel(id string) (bool, error)
	Balance() price.Price
	Positions() (string, error)
}

// Stream is a venue-agnostic Backend that dials a JSON tick stream
// over a WebSocket, owns its own I/O goroutine and its own mutex for
// the price cache and order book it maintains, and delegates order
// placement to an OrderSender (the piece that would carry venue auth,
// out of scope here).
type Stream struct {
	mu sync.RWMutex

	name   string
	wsURL  string
	sender OrderSender

	conn      *websocket.Conn
	running   int32
	stopCh    chan struct{}

	quotes map[uint32]quote
	books  map[uint32]*market.OrderBook
	volume map[uint32]price.Price
}

// NewStream creates a stream backend named name, dialing wsURL for
// ticks and delegating order placement to sender.
func NewStream(name, wsURL string, sender OrderSender) *Stream {
	return &Stream{
		name:   name,
		wsURL:  wsURL,
		sender: sender,
		stopCh: make(chan struct{}),
		quotes: make(map[uint32]quote),
		books:  make(map[uint32]*market.OrderBook),
		volume: make(map[uint32]price.Price),
	}
}

// Start dials the feed and begins the read loop in the background.
func (s *Stream) Start() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	go s.connectionLoop()
	log.Info().Str("backend", s.name).Msg("stream backend started")
}

// Stop closes the connection and halts the read loop.
func (s *Stream) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return
	}
	close(s.stopCh)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Stream) connectionLoop() {
	for atomic.LoadInt32(&s.running) == 1 {
		select {
		case <-s.stopCh:
			return
		default:
		}
		if err := s.connect(); err != nil {
			log.Error().Err(err).Str("backend", s.name).Msg("stream backend: dial failed, retrying")
			time.Sleep(streamReconnectDelay)
			continue
		}
		s.readLoop()
		time.Sleep(streamReconnectDelay)
	}
}

func (s *Stream) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	log.Info().Str("backend", s.name).Str("url", s.wsURL).Msg("stream backend connected")
	go s.pingLoop(conn)
	return nil
}

func (s *Stream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readLoop() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("backend", s.name).Msg("stream backend: read loop exiting")
			return
		}
		s.processMessage(data)
	}
}

func (s *Stream) processMessage(data []byte) {
	var t streamTick
	if err := json.Unmarshal(data, &t); err != nil {
		// Malformed tick: swallow and continue, per spec's parse-failure policy.
		return
	}
	if t.Ticker == "" {
		return
	}
	hash := market.FNV1a(t.Ticker)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[hash] = quote{yes: price.FromDouble(t.YesBid), no: price.FromDouble(t.NoBid)}
	if t.Volume != 0 {
		s.volume[hash] = price.FromDouble(t.Volume)
	}
	ob, ok := s.books[hash]
	if !ok {
		ob = market.NewOrderBook()
		s.books[hash] = ob
	}
	ob.ApplySnapshot(
		map[price.Price]int64{price.FromDouble(t.YesBid): 1},
		map[price.Price]int64{price.FromDouble(t.YesAsk): 1},
	)
}

func (s *Stream) Name() string { return s.name }

func (s *Stream) GetPrice(m market.ID, outcomeYes bool) price.Price {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[m.Hash]
	if !ok {
		return price.Zero
	}
	if outcomeYes {
		return q.yes
	}
	return q.no
}

func (s *Stream) GetDepth(m market.ID, isBid bool) price.Price {
	s.mu.RLock()
	ob, ok := s.books[m.Hash]
	s.mu.RUnlock()
	if !ok {
		return price.Zero
	}
	return ob.BestDepth(isBid)
}

func (s *Stream) GetVolume(m market.ID) price.Price {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume[m.Hash]
}

func (s *Stream) GetBalance() price.Price {
	if s.sender == nil {
		return price.Zero
	}
	return s.sender.Balance()
}

func (s *Stream) GetPositions() (string, error) {
	if s.sender == nil {
		return "", nil
	}
	return s.sender.Positions()
}

func (s *Stream) CreateOrder(o order.Order) (string, error) {
	if s.sender == nil {
		return ErrorID, fmt.Errorf("stream backend %q: no order sender configured", s.name)
	}
	return s.sender.SendOrder(o)
}

func (s *Stream) CancelOrder(id string) (bool, error) {
	if s.sender == nil {
		return false, fmt.Errorf("stream backend %q: no order sender configured", s.name)
	}
	return s.sender.SendCancel(id)
}

func (s *Stream) CreateBatch(orders []order.Order) ([]string, error) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		id, err := s.CreateOrder(o)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
