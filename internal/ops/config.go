package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"github.com/capitalk/strategy/internal/schema"
	"github.com/capitalk/strategy/internal/strategy"
	"github.com/capitalk/strategy/internal/venue"
	"github.com/capitalk/strategy/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	StrategyID string         `json:"strategyId"`
	Symbols    []string       `json:"symbols"`
	Venues     []VenueConfig  `json:"venues"`
	Strategy   StrategyConfig `json:"strategy"`
	Journal    *JournalConfig `json:"journal"`
}

// VenueConfig describes one ECN entry.
type VenueConfig struct {
	ID                        int64  `json:"id"`
	MIC                       string `json:"mic"`
	OrderAddr                 string `json:"orderAddr"`
	MarketDataAddr            string `json:"marketDataAddr"`
	UseSyntheticCancelReplace bool   `json:"useSyntheticCancelReplace"`
}

// StrategyConfig holds the tunable uncrosser parameters. Omitted
// fields fall back to the defaults.
type StrategyConfig struct {
	MinCrossMagnitude   float64 `json:"minCrossMagnitude"`
	NewOrderDelayMs     float64 `json:"newOrderDelayMs"`
	MaxOrderLifetimeSec float64 `json:"maxOrderLifetimeSec"`
	MaxOrderQty         float64 `json:"maxOrderQty"`
	WarmupSec           float64 `json:"warmupSec"`
}

// JournalConfig describes the optional PostgreSQL journal.
type JournalConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	StrategyID uuid.UUID
	Symbols    []string
	Venues     *venue.Registry
	Params     strategy.Params
	// Journal is nil when no journal section is configured.
	Journal *conn.Option
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}

	strategyID := uuid.New()
	if cfg.StrategyID != "" {
		strategyID, err = uuid.Parse(cfg.StrategyID)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "parse strategy id")
		}
	}

	venues, err := buildRegistry(cfg.Venues)
	if err != nil {
		return Loaded{}, err
	}

	if len(cfg.Symbols) == 0 {
		return Loaded{}, errors.New("config: no symbols defined")
	}

	loaded := Loaded{
		StrategyID: strategyID,
		Symbols:    cfg.Symbols,
		Venues:     venues,
		Params:     resolveParams(cfg.Strategy),
	}
	if cfg.Journal != nil {
		loaded.Journal = &conn.Option{
			Host:     cfg.Journal.Host,
			Port:     cfg.Journal.Port,
			User:     cfg.Journal.User,
			Password: cfg.Journal.Password,
			Database: cfg.Journal.Database,
			SSLMode:  cfg.Journal.SSLMode,
		}
	}
	return loaded, nil
}

func buildRegistry(venues []VenueConfig) (*venue.Registry, error) {
	if len(venues) == 0 {
		return nil, errors.New("config: no venues defined")
	}
	reg := venue.NewRegistry()
	for _, v := range venues {
		err := reg.Add(venue.Venue{
			ID:                        schema.VenueID(v.ID),
			MIC:                       v.MIC,
			OrderAddr:                 v.OrderAddr,
			MarketDataAddr:            v.MarketDataAddr,
			UseSyntheticCancelReplace: v.UseSyntheticCancelReplace,
		})
		if err != nil {
			return nil, errors.Wrap(err, "register venue")
		}
	}
	return reg, nil
}

func resolveParams(cfg StrategyConfig) strategy.Params {
	params := strategy.DefaultParams()
	if cfg.MinCrossMagnitude > 0 {
		params.MinCrossMagnitude = cfg.MinCrossMagnitude
	}
	if cfg.NewOrderDelayMs > 0 {
		params.NewOrderDelay = time.Duration(cfg.NewOrderDelayMs * float64(time.Millisecond))
	}
	if cfg.MaxOrderLifetimeSec > 0 {
		params.MaxOrderLifetime = time.Duration(cfg.MaxOrderLifetimeSec * float64(time.Second))
	}
	if cfg.MaxOrderQty > 0 {
		params.MaxOrderQty = cfg.MaxOrderQty
	}
	if cfg.WarmupSec > 0 {
		params.WarmupWindow = time.Duration(cfg.WarmupSec * float64(time.Second))
	}
	return params
}
