package feed

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/bus"
	"github.com/capitalk/strategy/internal/obs"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
	"github.com/capitalk/strategy/internal/venue"
	"github.com/capitalk/strategy/pkg/exception"
)

const (
	engineWriteTimeout = 5 * time.Second
	engineHelloTimeout = 10 * time.Second
)

const (
	msgTypeHello           = "hello"
	msgTypeHelloAck        = "hello_ack"
	msgTypeOrderRequest    = "order_request"
	msgTypeExecutionReport = "execution_report"
	msgTypeCancelReject    = "cancel_reject"
)

type wireEnvelope struct {
	Type    string               `json:"type"`
	Hello   *wireHello           `json:"hello,omitempty"`
	Request *wireOrderRequest    `json:"request,omitempty"`
	Exec    *wireExecutionReport `json:"exec,omitempty"`
	Reject  *wireCancelReject    `json:"reject,omitempty"`
}

type wireHello struct {
	StrategyID string `json:"strategyId"`
}

type wireOrderRequest struct {
	Kind        int     `json:"kind"`
	RequestID   string  `json:"requestId"`
	OrigOrderID string  `json:"origOrderId,omitempty"`
	StrategyID  string  `json:"strategyId"`
	VenueID     int64   `json:"venueId"`
	Symbol      string  `json:"symbol"`
	Side        int     `json:"side"`
	Price       float64 `json:"price"`
	Qty         float64 `json:"qty"`
	OrderType   int     `json:"orderType"`
	TimeInForce int     `json:"timeInForce"`
}

type wireExecutionReport struct {
	ClOrderID     string  `json:"clOrderId"`
	OrigClOrderID string  `json:"origClOrderId,omitempty"`
	VenueID       int64   `json:"venueId"`
	Symbol        string  `json:"symbol"`
	Side          int     `json:"side"`
	ExecTransType int     `json:"execTransType"`
	ExecType      int     `json:"execType"`
	OrderStatus   int     `json:"orderStatus"`
	Price         float64 `json:"price"`
	OrderQty      float64 `json:"orderQty"`
	CumQty        float64 `json:"cumQty"`
	LeavesQty     float64 `json:"leavesQty"`
	AvgPrice      float64 `json:"avgPrice"`
	LastPrice     float64 `json:"lastPrice"`
	LastShares    float64 `json:"lastShares"`
}

type wireCancelReject struct {
	ClOrderID     string `json:"clOrderId"`
	OrigClOrderID string `json:"origClOrderId,omitempty"`
	VenueID       int64  `json:"venueId"`
	Reason        string `json:"reason"`
}

// EngineClient is the websocket session to one venue's order engine:
// order requests out, execution reports and cancel rejects in.
type EngineClient struct {
	venue   venue.Venue
	conn    *websocket.Conn
	queue   *bus.Queue
	metrics *obs.Metrics

	// gorilla permits one concurrent writer per connection.
	writeMu sync.Mutex
}

// DialEngine connects to the venue's order engine and completes the
// hello handshake identifying this strategy.
func DialEngine(ctx context.Context, v venue.Venue, strategyID uuid.UUID, queue *bus.Queue, metrics *obs.Metrics) (*EngineClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, v.OrderAddr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial order engine %s", v.OrderAddr)
	}

	c := &EngineClient{
		venue:   v,
		conn:    conn,
		queue:   queue,
		metrics: metrics,
	}
	if err := c.hello(strategyID); err != nil {
		conn.Close()
		return nil, err
	}
	logs.Infof("connected to order engine for venue %d at %s", v.ID, v.OrderAddr)
	return c, nil
}

func (c *EngineClient) hello(strategyID uuid.UUID) error {
	err := c.write(wireEnvelope{
		Type:  msgTypeHello,
		Hello: &wireHello{StrategyID: strategyID.String()},
	})
	if err != nil {
		return errors.Wrap(err, "send hello")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(engineHelloTimeout)); err != nil {
		return errors.Wrap(err, "set hello deadline")
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read hello ack")
	}
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return errors.Wrap(err, "clear hello deadline")
	}

	var env wireEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return errors.Wrap(err, "parse hello ack")
	}
	if env.Type != msgTypeHelloAck {
		return errors.Errorf("unexpected handshake reply %q", env.Type)
	}
	return nil
}

func (c *EngineClient) Close() error {
	return c.conn.Close()
}

// SendOrderRequest encodes and ships one request. Implements the order
// store's sender contract.
func (c *EngineClient) SendOrderRequest(req schema.OrderRequest) error {
	w := wireOrderRequest{
		Kind:        int(req.Kind),
		RequestID:   req.RequestID.String(),
		StrategyID:  req.StrategyID.String(),
		VenueID:     int64(req.VenueID),
		Symbol:      req.Symbol,
		Side:        int(req.Side),
		Price:       req.Price,
		Qty:         req.Qty,
		OrderType:   int(req.OrderType),
		TimeInForce: int(req.TimeInForce),
	}
	if !req.OrigOrderID.IsZero() {
		w.OrigOrderID = req.OrigOrderID.String()
	}
	return c.write(wireEnvelope{Type: msgTypeOrderRequest, Request: &w})
}

func (c *EngineClient) write(env wireEnvelope) error {
	data, err := sonic.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(engineWriteTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write order engine message")
	}
	return nil
}

// Run reads engine messages and publishes them onto the strategy queue
// until the connection drops or the context ends.
func (c *EngineClient) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "read order engine for venue %d", c.venue.ID)
		}

		var env wireEnvelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			logs.Warnf("unparseable order engine message from venue %d: %+v", c.venue.ID, err)
			continue
		}

		switch env.Type {
		case msgTypeExecutionReport:
			if env.Exec == nil {
				logs.Warnf("execution_report envelope without payload from venue %d", c.venue.ID)
				continue
			}
			er, err := decodeExecutionReport(*env.Exec)
			if err != nil {
				logs.Warnf("bad execution report from venue %d: %+v", c.venue.ID, err)
				continue
			}
			c.publish(bus.Event{Exec: &er})
		case msgTypeCancelReject:
			if env.Reject == nil {
				logs.Warnf("cancel_reject envelope without payload from venue %d", c.venue.ID)
				continue
			}
			cr, err := decodeCancelReject(*env.Reject)
			if err != nil {
				logs.Warnf("bad cancel reject from venue %d: %+v", c.venue.ID, err)
				continue
			}
			c.publish(bus.Event{Reject: &cr})
		default:
			logs.Warnf("unknown order engine message type %q from venue %d", env.Type, c.venue.ID)
		}
	}
}

func (c *EngineClient) publish(e bus.Event) {
	switch err := c.queue.TryPublish(e); err {
	case nil:
	case exception.ErrStrategyQueueFull:
		// Order flow must not be dropped silently; this warrants more
		// noise than a lost tick.
		c.metrics.IncQueueDrop()
		logs.Errorf("strategy queue full, dropping order engine event from venue %d", c.venue.ID)
	case exception.ErrStrategyQueueClosed:
		c.metrics.IncQueueClosed()
	}
}

func decodeExecutionReport(w wireExecutionReport) (schema.ExecutionReport, error) {
	cl, err := schema.ParseOrderID(w.ClOrderID)
	if err != nil {
		return schema.ExecutionReport{}, errors.Wrap(err, "parse cl_order_id")
	}
	orig := schema.ZeroOrderID
	if w.OrigClOrderID != "" {
		orig, err = schema.ParseOrderID(w.OrigClOrderID)
		if err != nil {
			return schema.ExecutionReport{}, errors.Wrap(err, "parse orig_cl_order_id")
		}
	}
	return schema.ExecutionReport{
		ClOrderID:     cl,
		OrigClOrderID: orig,
		VenueID:       schema.VenueID(w.VenueID),
		Symbol:        w.Symbol,
		Side:          enum.Side(w.Side),
		ExecTransType: enum.ExecTransType(w.ExecTransType),
		ExecType:      enum.ExecType(w.ExecType),
		OrderStatus:   enum.OrderStatus(w.OrderStatus),
		Price:         w.Price,
		OrderQty:      w.OrderQty,
		CumQty:        w.CumQty,
		LeavesQty:     w.LeavesQty,
		AvgPrice:      w.AvgPrice,
		LastPrice:     w.LastPrice,
		LastShares:    w.LastShares,
	}, nil
}

func decodeCancelReject(w wireCancelReject) (schema.CancelReject, error) {
	cl, err := schema.ParseOrderID(w.ClOrderID)
	if err != nil {
		return schema.CancelReject{}, errors.Wrap(err, "parse cl_order_id")
	}
	orig := schema.ZeroOrderID
	if w.OrigClOrderID != "" {
		orig, err = schema.ParseOrderID(w.OrigClOrderID)
		if err != nil {
			return schema.CancelReject{}, errors.Wrap(err, "parse orig_cl_order_id")
		}
	}
	return schema.CancelReject{
		ClOrderID:     cl,
		OrigClOrderID: orig,
		VenueID:       schema.VenueID(w.VenueID),
		Reason:        w.Reason,
	}, nil
}

// Router fans outbound requests to the engine client of the request's
// venue. Implements the order store's sender contract.
type Router struct {
	clients map[schema.VenueID]*EngineClient
}

func NewRouter() *Router {
	return &Router{clients: make(map[schema.VenueID]*EngineClient)}
}

// Register binds a venue id to its engine client.
func (r *Router) Register(id schema.VenueID, c *EngineClient) {
	r.clients[id] = c
}

// SendOrderRequest routes the request by venue.
func (r *Router) SendOrderRequest(req schema.OrderRequest) error {
	c, ok := r.clients[req.VenueID]
	if !ok {
		return errors.Wrap(exception.ErrOrderUnknownVenue, req.VenueID.String())
	}
	return c.SendOrderRequest(req)
}
