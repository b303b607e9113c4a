package om

import "github.com/capitalk/strategy/internal/schema"

// pendingRequests tracks in-flight request ids per order. It is a bimap:
// an order id maps to the set of request ids awaiting acknowledgment,
// and every request id maps back to the single order id it targets.
// Removing an order cascades over all of its request ids.
type pendingRequests struct {
	requestsByOrder map[schema.OrderID]map[schema.OrderID]struct{}
	orderByRequest  map[schema.OrderID]schema.OrderID
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{
		requestsByOrder: make(map[schema.OrderID]map[schema.OrderID]struct{}),
		orderByRequest:  make(map[schema.OrderID]schema.OrderID),
	}
}

// Add records requestID as pending against orderID.
func (p *pendingRequests) Add(orderID, requestID schema.OrderID) {
	set, ok := p.requestsByOrder[orderID]
	if !ok {
		set = make(map[schema.OrderID]struct{})
		p.requestsByOrder[orderID] = set
	}
	set[requestID] = struct{}{}
	p.orderByRequest[requestID] = orderID
}

// HasRequest reports whether requestID is pending for any order.
func (p *pendingRequests) HasRequest(requestID schema.OrderID) bool {
	_, ok := p.orderByRequest[requestID]
	return ok
}

// HasOrder reports whether orderID has any pending requests.
func (p *pendingRequests) HasOrder(orderID schema.OrderID) bool {
	_, ok := p.requestsByOrder[orderID]
	return ok
}

// OrderFor returns the order id a pending request targets.
func (p *pendingRequests) OrderFor(requestID schema.OrderID) (schema.OrderID, bool) {
	orderID, ok := p.orderByRequest[requestID]
	return orderID, ok
}

// RemoveRequest drops a single pending request, keeping both sides of
// the bimap consistent. It reports whether the request was pending.
func (p *pendingRequests) RemoveRequest(requestID schema.OrderID) bool {
	orderID, ok := p.orderByRequest[requestID]
	if !ok {
		return false
	}
	delete(p.orderByRequest, requestID)
	if set, ok := p.requestsByOrder[orderID]; ok {
		delete(set, requestID)
		if len(set) == 0 {
			delete(p.requestsByOrder, orderID)
		}
	}
	return true
}

// RemoveOrder drops an order and every request pending against it.
// It reports whether the order had pending requests.
func (p *pendingRequests) RemoveOrder(orderID schema.OrderID) bool {
	set, ok := p.requestsByOrder[orderID]
	if !ok {
		return false
	}
	for requestID := range set {
		delete(p.orderByRequest, requestID)
	}
	delete(p.requestsByOrder, orderID)
	return true
}

// Requests returns the pending request ids for an order.
func (p *pendingRequests) Requests(orderID schema.OrderID) []schema.OrderID {
	set := p.requestsByOrder[orderID]
	out := make([]schema.OrderID, 0, len(set))
	for requestID := range set {
		out = append(out, requestID)
	}
	return out
}

// Len returns the number of pending requests across all orders.
func (p *pendingRequests) Len() int {
	return len(p.orderByRequest)
}
