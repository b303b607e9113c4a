package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"github.com/capitalk/strategy/internal/bus"
	"github.com/capitalk/strategy/internal/feed"
	"github.com/capitalk/strategy/internal/journal"
	"github.com/capitalk/strategy/internal/md"
	"github.com/capitalk/strategy/internal/obs"
	"github.com/capitalk/strategy/internal/om"
	"github.com/capitalk/strategy/internal/ops"
	"github.com/capitalk/strategy/internal/strategy"
	"github.com/capitalk/strategy/internal/uncross"
	"github.com/capitalk/strategy/pkg/conn"
)

const queueCapacity = 4096

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	minCrossMagnitude := flag.Float64("min-cross-magnitude", 0, "Smallest normalized cross worth trading")
	orderDelay := flag.Duration("order-delay", 0, "Delay between detecting a cross and sending its legs")
	maxOrderLifetime := flag.Duration("max-order-lifetime", 0, "How long cross legs may rest before unwinding")
	maxOrderQty := flag.Float64("max-order-qty", 0, "Cap on any single leg's quantity")
	startupWaitTime := flag.Duration("startup-wait-time", 0, "Market data warm-up window before trading")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("missing -config")
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	applyFlagOverrides(&loaded.Params, *minCrossMagnitude, *orderDelay, *maxOrderLifetime, *maxOrderQty, *startupWaitTime)

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "capitalk.uncross",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer profiler.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loaded); err != nil && ctx.Err() == nil {
		log.Fatalf("strategy halted: %v", err)
	}
}

func applyFlagOverrides(params *strategy.Params, minCrossMagnitude float64, orderDelay, maxOrderLifetime time.Duration, maxOrderQty float64, startupWaitTime time.Duration) {
	if minCrossMagnitude > 0 {
		params.MinCrossMagnitude = minCrossMagnitude
	}
	if orderDelay > 0 {
		params.NewOrderDelay = orderDelay
	}
	if maxOrderLifetime > 0 {
		params.MaxOrderLifetime = maxOrderLifetime
	}
	if maxOrderQty > 0 {
		params.MaxOrderQty = maxOrderQty
	}
	if startupWaitTime > 0 {
		params.WarmupWindow = startupWaitTime
	}
}

func run(ctx context.Context, loaded ops.Loaded) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(queueCapacity)
	defer queue.Close()

	book := md.NewBook()
	router := feed.NewRouter()
	store := om.NewStore(loaded.StrategyID, loaded.Venues, router)
	detector := uncross.NewDetector(book)
	lifecycle := uncross.NewLifecycle(store, book, loaded.Params.MaxOrderQty)
	lifecycle.SetOnComplete(func(c *uncross.Cross, filledQty, bidAvg, offerAvg, profit float64) {
		metrics.IncCrossDone()
	})

	if loaded.Journal != nil {
		client, err := conn.New(*loaded.Journal)
		if err != nil {
			return err
		}
		defer client.Close()
		jnl, err := journal.New(client)
		if err != nil {
			return err
		}
		store.SetOnFill(jnl.RecordFill)
		lifecycle.SetOnComplete(func(c *uncross.Cross, filledQty, bidAvg, offerAvg, profit float64) {
			metrics.IncCrossDone()
			jnl.RecordCross(c, filledQty, bidAvg, offerAvg, profit)
		})
	}

	// One order engine session and one market data feed per venue.
	for _, v := range loaded.Venues.All() {
		client, err := feed.DialEngine(ctx, v, loaded.StrategyID, queue, metrics)
		if err != nil {
			return err
		}
		defer client.Close()
		router.Register(v.ID, client)
		go func() {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("order engine session for venue %d failed: %v", v.ID, err)
				cancel()
			}
		}()

		mdf := feed.NewMarketDataFeed(ctx, v, queue, metrics)
		if err := mdf.Start(ctx); err != nil {
			return err
		}
		defer mdf.Close()
		if err := mdf.SubscribeBBO(ctx, loaded.Symbols); err != nil {
			return err
		}
		unsubscribe := mdf.Observe(ctx)
		defer unsubscribe()
	}

	loop := strategy.NewLoop(loaded.Params, queue, book, store, detector, lifecycle, metrics)
	if err := loop.Synchronize(ctx); err != nil {
		return err
	}
	err := loop.Run(ctx)

	// Best effort: pull every resting order before the process exits.
	if cancelErr := store.CancelEverything(); cancelErr != nil {
		log.Printf("cancel everything on shutdown failed: %v", cancelErr)
	}
	logSnapshot(metrics.Snapshot())
	return err
}

func logSnapshot(s obs.Snapshot) {
	log.Printf("session summary: ticks=%d execs=%d rejects=%d detected=%d sent=%d done=%d rescues=%d drops=%d",
		s.Ticks, s.ExecReports, s.CancelRejects, s.CrossesDetected, s.CrossesSent, s.CrossesDone, s.Rescues, s.QueueDrops)
}
