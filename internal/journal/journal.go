package journal

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"github.com/capitalk/strategy/internal/om"
	"github.com/capitalk/strategy/internal/uncross"
	"github.com/capitalk/strategy/pkg/conn"
)

// FillRecord is one confirmed fill row.
type FillRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"index"`
	VenueID    int64
	Symbol     string `gorm:"index"`
	Side       string
	LastShares float64
	LastPrice  float64
	CumQty     float64
	AvgPrice   float64
	CreatedAt  time.Time
}

// CrossRecord is one completed cross row.
type CrossRecord struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol        string `gorm:"index"`
	BidVenueID    int64
	OfferVenueID  int64
	BidPrice      float64
	OfferPrice    float64
	FilledQty     float64
	BidAvgPrice   float64
	OfferAvgPrice float64
	Profit        float64
	CreatedAt     time.Time
}

// Journal persists fills and completed crosses to PostgreSQL for
// post-trade analysis. A nil Journal is a no-op, so the strategy runs
// unchanged without a database. Write failures are logged and
// swallowed; journaling must never interrupt trading.
type Journal struct {
	db *gorm.DB
}

// New builds a journal on the given client and migrates its tables.
func New(client *conn.Client) (*Journal, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("journal: nil database client")
	}
	db := client.DB()
	if err := db.AutoMigrate(&FillRecord{}, &CrossRecord{}); err != nil {
		return nil, errors.Wrap(err, "journal migrate")
	}
	return &Journal{db: db}, nil
}

// RecordFill appends a fill row.
func (j *Journal) RecordFill(order *om.Order, lastShares, lastPrice float64) {
	if j == nil {
		return
	}
	rec := FillRecord{
		OrderID:    order.CurrentID.String(),
		VenueID:    int64(order.VenueID),
		Symbol:     order.Symbol,
		Side:       order.Side.String(),
		LastShares: lastShares,
		LastPrice:  lastPrice,
		CumQty:     order.CumQty,
		AvgPrice:   order.AvgPrice,
		CreatedAt:  time.Now(),
	}
	if err := j.db.Create(&rec).Error; err != nil {
		logs.Errorf("journal fill write failed: %+v", err)
	}
}

// RecordCross appends a completed-cross row.
func (j *Journal) RecordCross(c *uncross.Cross, filledQty, bidAvgPrice, offerAvgPrice, profit float64) {
	if j == nil {
		return
	}
	rec := CrossRecord{
		Symbol:        c.Bid.Symbol,
		BidVenueID:    int64(c.Bid.VenueID),
		OfferVenueID:  int64(c.Offer.VenueID),
		BidPrice:      c.Bid.Price,
		OfferPrice:    c.Offer.Price,
		FilledQty:     filledQty,
		BidAvgPrice:   bidAvgPrice,
		OfferAvgPrice: offerAvgPrice,
		Profit:        profit,
		CreatedAt:     time.Now(),
	}
	if err := j.db.Create(&rec).Error; err != nil {
		logs.Errorf("journal cross write failed: %+v", err)
	}
}
