package om

import (
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/schema/enum"
	"github.com/capitalk/strategy/internal/venue"
	"github.com/capitalk/strategy/pkg/exception"
)

// OrderSender dispatches an outbound request to the venue transport.
// The wire encoding and socket handling live behind this interface.
type OrderSender interface {
	SendOrderRequest(req schema.OrderRequest) error
}

// FillFunc observes every confirmed fill, for journaling.
type FillFunc func(order *Order, lastShares, lastPrice float64)

// Store is the order state machine. It owns every known order keyed by
// each identifier in its chain, the subset of ids resting live in the
// market, the pending-request bimap and the per-symbol positions, and
// reconciles asynchronous execution reports and cancel rejects against
// them.
type Store struct {
	strategyID uuid.UUID
	venues     *venue.Registry
	sender     OrderSender

	// orders aliases every id a chain was ever known by to the same
	// *Order, so reports and cancel rejects referencing stale or
	// request ids still resolve.
	orders    map[schema.OrderID]*Order
	live      map[schema.OrderID]struct{}
	pending   *pendingRequests
	positions map[string]*Position

	onFill FillFunc
	now    func() time.Time
	newID  func() schema.OrderID
}

// NewStore creates an order store sending through the given transport.
func NewStore(strategyID uuid.UUID, venues *venue.Registry, sender OrderSender) *Store {
	return &Store{
		strategyID: strategyID,
		venues:     venues,
		sender:     sender,
		orders:     make(map[schema.OrderID]*Order),
		live:       make(map[schema.OrderID]struct{}),
		pending:    newPendingRequests(),
		positions:  make(map[string]*Position),
		now:        time.Now,
		newID:      schema.NewOrderID,
	}
}

// SetOnFill registers a fill observer. Pass nil to disable.
func (s *Store) SetOnFill(fn FillFunc) {
	s.onFill = fn
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the order known under id, following the whole id chain.
func (s *Store) Get(id schema.OrderID) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, exception.ErrOrderNotFound
	}
	return o, nil
}

// IsAlive reports whether id is acknowledged and resting in the market.
func (s *Store) IsAlive(id schema.OrderID) bool {
	_, ok := s.live[id]
	return ok
}

// IsPending reports whether id is an unacknowledged in-flight request.
func (s *Store) IsPending(id schema.OrderID) bool {
	return s.pending.HasRequest(id)
}

// LiveCount returns the number of live order ids.
func (s *Store) LiveCount() int {
	return len(s.live)
}

// Position returns the fill aggregate for a symbol, nil if untouched.
func (s *Store) Position(symbol string) *Position {
	return s.positions[symbol]
}

// OpenOrders returns the orders behind every live id.
func (s *Store) OpenOrders() []*Order {
	out := make([]*Order, 0, len(s.live))
	for id := range s.live {
		if o, ok := s.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// SubmitNew allocates a fresh id, sends a new order request and records
// the order as pending its own acknowledgment. The id does not become
// live until the venue acks it.
func (s *Store) SubmitNew(venueID schema.VenueID, symbol string, side enum.Side, price, qty float64, orderType enum.OrderType, tif enum.TimeInForce) (schema.OrderID, error) {
	if s.sender == nil {
		return schema.ZeroOrderID, exception.ErrOrderNilSender
	}
	if _, ok := s.venues.Venue(venueID); !ok {
		return schema.ZeroOrderID, errors.Wrap(exception.ErrOrderUnknownVenue, venueID.String())
	}

	id := s.newID()
	now := s.now()
	order := &Order{
		CurrentID:   id,
		VenueID:     venueID,
		Symbol:      symbol,
		Side:        side,
		Price:       price,
		Qty:         qty,
		OrderType:   orderType,
		TimeInForce: tif,
		Status:      enum.OrderStatusPendingNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.sender.SendOrderRequest(schema.OrderRequest{
		Kind:        enum.RequestKindNew,
		RequestID:   id,
		StrategyID:  s.strategyID,
		VenueID:     venueID,
		Symbol:      symbol,
		Side:        side,
		Price:       price,
		Qty:         qty,
		OrderType:   orderType,
		TimeInForce: tif,
	})
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "send new order")
	}

	s.orders[id] = order
	s.pending.Add(id, id)
	logs.Infof("send_new_order: id=%s venue=%d symbol=%s side=%s price=%f qty=%f",
		id, venueID, symbol, side, price, qty)
	return id, nil
}

// SubmitCancel sends a cancel for a live or still-pending order and
// returns the cancel's request id. The venue acknowledges the cancel
// under that request id, not the original order id. Cancelling before
// the new-order ack is allowed; if the new order gets rejected the
// cancel request is swept out of pending with it.
func (s *Store) SubmitCancel(orderID schema.OrderID) (schema.OrderID, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return schema.ZeroOrderID, exception.ErrOrderNotFound
	}
	if !s.IsAlive(orderID) && !s.IsPending(orderID) {
		return schema.ZeroOrderID, exception.ErrOrderNotLive
	}

	requestID := s.newID()
	err := s.sender.SendOrderRequest(schema.OrderRequest{
		Kind:        enum.RequestKindCancel,
		RequestID:   requestID,
		OrigOrderID: order.CurrentID,
		StrategyID:  s.strategyID,
		VenueID:     order.VenueID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Qty:         order.Qty,
		OrderType:   order.OrderType,
		TimeInForce: order.TimeInForce,
	})
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "send cancel")
	}

	s.orders[requestID] = order
	s.pending.Add(order.CurrentID, requestID)
	logs.Infof("send_cancel: order_id=%s request_id=%s", orderID, requestID)
	return requestID, nil
}

// SubmitCancelReplace sends a native cancel/replace for a live order.
// At least one of price and qty must actually change; a no-op request
// is refused before anything hits the wire.
func (s *Store) SubmitCancelReplace(orderID schema.OrderID, newPrice, newQty float64) (schema.OrderID, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return schema.ZeroOrderID, exception.ErrOrderNotFound
	}
	if !s.IsAlive(orderID) {
		return schema.ZeroOrderID, exception.ErrOrderNotLive
	}
	if order.Price == newPrice && order.Qty == newQty {
		return schema.ZeroOrderID, exception.ErrOrderNoOpReplace
	}

	requestID := s.newID()
	err := s.sender.SendOrderRequest(schema.OrderRequest{
		Kind:        enum.RequestKindReplace,
		RequestID:   requestID,
		OrigOrderID: order.CurrentID,
		StrategyID:  s.strategyID,
		VenueID:     order.VenueID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       newPrice,
		Qty:         newQty,
		OrderType:   order.OrderType,
		TimeInForce: order.TimeInForce,
	})
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "send cancel/replace")
	}

	s.orders[requestID] = order
	s.pending.Add(order.CurrentID, requestID)
	logs.Infof("send_cancel_replace: orig_id=%s replace_id=%s price=%f qty=%f",
		orderID, requestID, newPrice, newQty)
	return requestID, nil
}

// SubmitSyntheticCancelReplace emulates a replace on venues without
// native support: a plain cancel of the existing order plus a brand-new
// order at the new price/qty. The two messages are not atomic; the old
// order may still fill between them, which the caller must tolerate.
// It returns the new order's id.
func (s *Store) SubmitSyntheticCancelReplace(orderID schema.OrderID, newPrice, newQty float64) (schema.OrderID, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return schema.ZeroOrderID, exception.ErrOrderNotFound
	}
	if !s.IsAlive(orderID) {
		return schema.ZeroOrderID, exception.ErrOrderNotLive
	}
	if order.Price == newPrice && order.Qty == newQty {
		return schema.ZeroOrderID, exception.ErrOrderNoOpReplace
	}

	cancelID, err := s.SubmitCancel(orderID)
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "synthetic replace cancel leg")
	}
	newOrderID, err := s.SubmitNew(order.VenueID, order.Symbol, order.Side, newPrice, newQty, order.OrderType, order.TimeInForce)
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "synthetic replace new leg")
	}

	logs.Infof("send_synth_cancel_replace: orig_id=%s cancel_id=%s new_id=%s price=%f qty=%f",
		orderID, cancelID, newOrderID, newPrice, newQty)
	return newOrderID, nil
}

// CancelIfAlive cancels the order only if it is live, reporting whether
// a cancel was actually sent.
func (s *Store) CancelIfAlive(orderID schema.OrderID) (bool, error) {
	if !s.IsAlive(orderID) {
		return false, nil
	}
	logs.Infof("sending cancel for live order %s", orderID)
	if _, err := s.SubmitCancel(orderID); err != nil {
		return false, err
	}
	return true, nil
}

// CancelEverything cancels every live order. The live set is
// snapshotted first since cancellation bookkeeping mutates it.
func (s *Store) CancelEverything() error {
	ids := make([]schema.OrderID, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if _, err := s.SubmitCancel(id); err != nil {
			return errors.Wrap(err, "cancel everything")
		}
	}
	return nil
}

// LiquidateOrder replaces a live order with a deliberately unfavorable
// price likely to transact, using the venue's native replace or the
// synthetic emulation per its capability flag. qty <= 0 keeps the
// order's requested qty.
func (s *Store) LiquidateOrder(book *md.Book, orderID schema.OrderID, qty float64) (schema.OrderID, error) {
	order, err := s.Get(orderID)
	if err != nil {
		return schema.ZeroOrderID, err
	}
	if qty <= 0 {
		qty = order.Qty
	}
	price, err := book.LiquidationPrice(order.Side, order.Symbol, order.VenueID)
	if err != nil {
		return schema.ZeroOrderID, errors.Wrap(err, "liquidation price")
	}
	if s.venues.UseSyntheticCancelReplace(order.VenueID) {
		return s.SubmitSyntheticCancelReplace(order.CurrentID, price, qty)
	}
	return s.SubmitCancelReplace(order.CurrentID, price, qty)
}

// LiquidateAll replaces every open order with its liquidation price.
func (s *Store) LiquidateAll(book *md.Book) ([]schema.OrderID, error) {
	logs.Infof("attempting to liquidate all %d open orders", len(s.live))
	ids := make([]schema.OrderID, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	out := make([]schema.OrderID, 0, len(ids))
	for _, id := range ids {
		requestID, err := s.LiquidateOrder(book, id, 0)
		if err != nil {
			return out, err
		}
		out = append(out, requestID)
	}
	return out, nil
}

// ApplyExecutionReport reconciles one inbound execution report. Fatal
// errors mark protocol paths this strategy does not support or internal
// inconsistencies; the caller must halt on them. Expected races
// (unsolicited cancel/replace confirmations) are logged and absorbed.
func (s *Store) ApplyExecutionReport(er schema.ExecutionReport) error {
	cl := er.ClOrderID
	orig := er.OrigClOrderID
	if orig.IsZero() {
		// Some ECNs leave orig empty on new-order acks.
		logs.Infof("orig_cl_order_id not set, using cl_order_id %s", cl)
		orig = cl
	}

	logs.Infof("execution: venue=%d cl=%s orig=%s status=%s exec_type=%s trans=%s side=%s symbol=%s price=%f qty=%f cum=%f leaves=%f avg=%f last_shares=%f last_price=%f",
		er.VenueID, cl, orig, er.OrderStatus, er.ExecType, er.ExecTransType, er.Side,
		er.Symbol, er.Price, er.OrderQty, er.CumQty, er.LeavesQty, er.AvgPrice, er.LastShares, er.LastPrice)

	switch er.ExecTransType {
	case enum.ExecTransTypeCorrect:
		return exception.Fatal(errors.Wrap(exception.ErrExecUnsupportedTransType, er.ExecTransType.String()))
	case enum.ExecTransTypeCancel:
		// A bust of a previous execution. Never seen from a venue this
		// strategy supports; absorb with loud logging.
		logs.Warnf("unsolicited CANCEL transaction (busted exec) on %s", cl)
		return nil
	case enum.ExecTransTypeStatus:
		logs.Infof("status transaction for %s carries no new fills", cl)
		// No fill state is trusted from a status snapshot, but a venue
		// reporting a live order as terminal must not leave it resting
		// in the live set forever.
		if er.OrderStatus.IsTerminal() {
			if order, ok := s.orders[orig]; ok && s.IsAlive(order.CurrentID) {
				logs.Warnf("status transaction reports terminal %s for live order %s, clearing liveness",
					er.OrderStatus, order.CurrentID)
				delete(s.live, order.CurrentID)
			}
		}
		return nil
	}

	switch er.ExecType {
	case enum.ExecTypeStopped, enum.ExecTypeSuspended, enum.ExecTypeRestated, enum.ExecTypeCalculated:
		return exception.Fatal(errors.Wrap(exception.ErrExecUnsupportedExecType, er.ExecType.String()))
	}

	order, ok := s.orders[orig]
	if !ok {
		order, ok = s.orders[cl]
		if !ok {
			return exception.Fatal(errors.Wrap(exception.ErrExecUnknownOrder,
				"cl="+cl.String()+" orig="+orig.String()))
		}
	}
	order.applyReportFields(er, s.now())

	switch er.ExecType {
	case enum.ExecTypeNew:
		if !s.pending.HasRequest(cl) {
			return exception.Fatal(errors.Errorf("new ack for unknown pending id cl=%s orig=%s", cl, orig))
		}
		s.pending.RemoveRequest(cl)
		if cl != order.CurrentID {
			// Venue assigned its own id on ack; index the order under it.
			s.orders[cl] = order
			order.CurrentID = cl
		}
		s.live[cl] = struct{}{}

	case enum.ExecTypeCancelled, enum.ExecTypeReplace:
		if !s.pending.HasRequest(cl) {
			// ECNs occasionally confirm cancels nobody asked for.
			logs.Warnf("unsolicited %s for cl=%s orig=%s, not in pending", er.ExecType, cl, orig)
			break
		}
		if err := s.renameOrder(order, orig, cl); err != nil {
			return err
		}
		s.pending.RemoveRequest(cl)
		// The stale id can generate no further acks, so every other
		// in-flight request against it is dropped with it.
		s.pending.RemoveOrder(orig)

	case enum.ExecTypeFill, enum.ExecTypePartialFill:
		s.handleFill(order)
		// FXCM reports ExecType FILL even for partials; only the order
		// status distinguishes a full fill.
		if er.OrderStatus == enum.OrderStatusFill {
			logs.Infof("fill was full for %s", cl)
			delete(s.live, cl)
		} else if er.OrderStatus == enum.OrderStatusPartialFill {
			logs.Infof("fill was partial for %s (%f/%f)", cl, order.CumQty, order.Qty)
		}

	case enum.ExecTypeRejected:
		if !s.pending.HasRequest(cl) {
			return exception.Fatal(errors.Errorf("rejected order not in pending cl=%s orig=%s", cl, orig))
		}
		s.pending.RemoveRequest(cl)
		// Cascade: requests chained off the rejected id (a cancel sent
		// right after the new order, say) vanish from pending with it
		// and will never surface their own rejects.
		s.pending.RemoveOrder(cl)

	case enum.ExecTypePendingCancel:
		logs.Infof("pending cancel for cl=%s orig=%s", cl, orig)
	}

	if er.OrderStatus.IsTerminal() {
		if _, live := s.live[cl]; live {
			logs.Warnf("removing %s from live order ids on terminal status %s", cl, er.OrderStatus)
			delete(s.live, cl)
		} else if er.ExecTransType == enum.ExecTransTypeNew {
			logs.Warnf("order %s should have been live before entering terminal state %s", cl, er.OrderStatus)
		}
	}
	return nil
}

// renameOrder moves the order's identity from orig to cl while keeping
// the same business object. Renaming an unknown or dead order means the
// store and the venue disagree about reality, which is unrecoverable.
func (s *Store) renameOrder(order *Order, orig, cl schema.OrderID) error {
	if _, known := s.orders[orig]; !known {
		return exception.Fatal(errors.Wrap(exception.ErrExecUnknownOrder, orig.String()))
	}
	if !s.IsAlive(orig) {
		return exception.Fatal(errors.Wrap(exception.ErrExecRenameDeadOrder, orig.String()))
	}
	logs.Infof("renaming order %s to %s", orig, cl)
	order.CurrentID = cl
	s.orders[cl] = order
	delete(s.live, orig)
	s.live[cl] = struct{}{}
	return nil
}

// ApplyCancelReject handles a refused cancel or replace. cr.ClOrderID
// is the request id, cr.OrigClOrderID the order it targeted.
func (s *Store) ApplyCancelReject(cr schema.CancelReject) error {
	logs.Warnf("cancel reject: cl=%s orig=%s reason=%s", cr.ClOrderID, cr.OrigClOrderID, cr.Reason)
	if _, ok := s.orders[cr.OrigClOrderID]; !ok {
		return errors.Wrap(exception.ErrCancelRejectUnknownOrder, cr.OrigClOrderID.String())
	}

	// A replace request that was rejected before its first ack was
	// never live, so absence here is normal.
	if s.IsAlive(cr.ClOrderID) {
		delete(s.live, cr.ClOrderID)
	}

	if s.pending.HasRequest(cr.ClOrderID) {
		logs.Infof("pending id rejected: order_id=%s request_id=%s", cr.OrigClOrderID, cr.ClOrderID)
		s.pending.RemoveRequest(cr.ClOrderID)
	} else {
		logs.Warnf("unexpected cancel reject for %s - new/replace rejected or order already cancelled?", cr.ClOrderID)
	}
	return nil
}

func (s *Store) handleFill(order *Order) {
	pos, ok := s.positions[order.Symbol]
	if !ok {
		pos = &Position{Symbol: order.Symbol}
		s.positions[order.Symbol] = pos
	}
	pos.applyFill(order.Side, order.LastShares, order.LastPrice)
	logs.Infof("position %s: long=%f@%f short=%f@%f net=%f",
		pos.Symbol, pos.LongQty, pos.LongAvgPrice(), pos.ShortQty, pos.ShortAvgPrice(), pos.NetQty())
	if s.onFill != nil {
		s.onFill(order, order.LastShares, order.LastPrice)
	}
}
