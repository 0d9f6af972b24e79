// Command tgsyncdemo wires the update-sequencing core to a simulated
// transport so its event loop can be exercised end to end, the way the
// teacher's root main.go wires gotd's updates.Manager to a real telegram.Client.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mau.fi/zerozap"
	"go.uber.org/zap"

	"go.mau.fi/tgsync/hook"
	"go.mau.fi/tgsync/internal/testutil"
	"go.mau.fi/tgsync/schema"
	"go.mau.fi/tgsync/sequencer"
	"go.mau.fi/tgsync/transport"
	"go.mau.fi/tgsync/updates"
)

func main() {
	if len(os.Args) < 2 {
		panic("usage: tgsyncdemo <config.yaml>")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zaplog := zap.New(zerozap.New(log.Logger))

	cfg, err := loadConfig(os.Args[1])
	if err != nil {
		panic(err)
	}

	storage := testutil.NewMemStorage()

	snapshot, found, err := storage.Load(context.Background(), cfg.UserID)
	if err != nil {
		panic(err)
	}
	if !found {
		log.Info().Msg("no stored session state, starting fresh")
	}

	fake := transport.NewFake()
	installDemoHandlers(fake)

	coreCfg := updates.Config{
		UpdateQueueLimit: cfg.UpdateQueueLimit,
		CommonDeadline:   cfg.CommonDeadline,
		ChannelDeadline:  cfg.ChannelDeadline,
		CatchUp:          cfg.CatchUp,
		Logger:           zaplog.Named("updates"),
	}

	seq := sequencer.New(coreCfg, snapshot, retryingTransport{fake}, storage, cfg.UserID)
	onUpdate := hook.ForSequencer(seq)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go simulateInboundTraffic(ctx, fake, onUpdate)
	go periodicSync(ctx, seq, 30*time.Second)

	for {
		entry, err := seq.NextRawUpdate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("shutting down")
				return
			}
			log.Error().Err(err).Msg("next update failed")
			return
		}
		log.Info().Any("update", entry.Update).Msg("update ready")
	}
}

// retryingTransport applies exponential backoff around the raw transport's
// GetDifference call, strictly at this outer boundary: the sequencing core
// never retries anything itself (spec.md §9). GetChannelDifference and Step
// pass through to the raw transport without retries.
type retryingTransport struct {
	transport.Transport
}

func (t retryingTransport) GetDifference(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error) {
	var resp schema.DifferenceResponse
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(func() error {
		var err error
		resp, err = t.Transport.GetDifference(ctx, req)
		return err
	}, policy)
	return resp, err
}

// simulateInboundTraffic periodically feeds a synthetic container through
// onUpdate (standing in for the hook middleware harvesting one off a real
// RPC response) and signals the fake transport's Step, giving the demo's
// event loop both a pull-path container and something to race its
// deadlines against.
func simulateInboundTraffic(ctx context.Context, fake *transport.Fake, onUpdate hook.UpdateHook) {
	ticker := time.NewTicker(time.Duration(2+rand.Intn(3)) * time.Second)
	defer ticker.Stop()

	pts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pts++
			u := schema.Updates{
				List: []schema.Update{schema.PtsUpdate{PtsNow: pts, PtsCount: 1}},
				Seq:  0,
			}
			if err := onUpdate(ctx, u); err != nil {
				log.Warn().Err(err).Msg("failed to process simulated update")
			}
			fake.Signal()
		}
	}
}

func periodicSync(ctx context.Context, seq *sequencer.Sequencer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := seq.SyncState(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to sync session state")
			}
		}
	}
}

func installDemoHandlers(fake *transport.Fake) {
	fake.OnGetDifference(func(ctx context.Context, req schema.GetDifferenceRequest) (schema.DifferenceResponse, error) {
		return schema.DifferenceResponse{Kind: schema.DifferenceEmpty, State: schema.State{Pts: req.Pts, Qts: req.Qts, Date: req.Date}}, nil
	})
	fake.OnGetChannelDifference(func(ctx context.Context, req schema.GetChannelDifferenceRequest) (schema.ChannelDifferenceResponse, error) {
		return schema.ChannelDifferenceResponse{Final: true, Pts: req.Pts}, nil
	})
}
