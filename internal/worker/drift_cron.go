package worker

// drift_cron.go
// Background goroutine that periodically replays every product's ledger and
// compares it with the live counter. Drift is reported, never corrected:
// fixing it requires a ledgered adjustment by a person.

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"stockledger/internal/infra"
	"stockledger/internal/service"

	"github.com/rs/zerolog/log"
)

const defaultDriftInterval = 15 * time.Minute

// DriftChecker is satisfied by *service.InventoryProjector.
type DriftChecker interface {
	CheckAll(ctx context.Context) ([]service.ConsistencyReport, error)
}

// AlertEnqueuer is satisfied by *Dispatcher.
type AlertEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

// DriftCronConfig holds all dependencies for the drift monitor.
type DriftCronConfig struct {
	Checker    DriftChecker
	Alerts     AlertEnqueuer
	AlertEmail string // empty disables email alerts; drift is still logged
	Interval   time.Duration
}

// StartDriftCron launches the monitor. It respects ctx for graceful shutdown.
func StartDriftCron(ctx context.Context, cfg DriftCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultDriftInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("drift_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("drift_cron: shutting down")
				return
			case <-ticker.C:
				if _, err := RunDriftCheck(ctx, cfg); err != nil {
					log.Error().Err(err).Msg("drift_cron: check failed")
				}
			}
		}
	}()
}

// RunDriftCheck performs one sweep and returns the inconsistent products.
func RunDriftCheck(ctx context.Context, cfg DriftCronConfig) ([]service.ConsistencyReport, error) {
	bad, err := cfg.Checker.CheckAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(bad) == 0 {
		log.Debug().Msg("drift_cron: all products consistent")
		return nil, nil
	}

	for _, r := range bad {
		log.Error().
			Str("product_id", r.ProductID.String()).
			Int("live_stock", r.LiveStock).
			Int("projected_stock", r.ProjectedStock).
			Int("drift", r.Drift).
			Int("chain_breaks", len(r.ChainBreaks)).
			Msg("drift_cron: inventory drift detected")
	}

	if cfg.AlertEmail == "" || cfg.Alerts == nil {
		return bad, nil
	}
	attachment, err := driftCSV(bad)
	if err != nil {
		return bad, err
	}
	err = cfg.Alerts.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail:     cfg.AlertEmail,
		Subject:     fmt.Sprintf("[stockledger] inventory drift on %d product(s)", len(bad)),
		Body:        "The live stock counter disagrees with the ledger for the products in the attached file.\nNo automatic correction was made.",
		Attachments: []infra.Attachment{attachment},
	})
	if err != nil {
		return bad, fmt.Errorf("enqueue drift alert: %w", err)
	}
	return bad, nil
}

func driftCSV(reports []service.ConsistencyReport) (infra.Attachment, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"product_id", "live_stock", "projected_stock", "drift", "ledger_version", "entry_count", "chain_breaks"})
	for _, r := range reports {
		_ = w.Write([]string{
			r.ProductID.String(),
			strconv.Itoa(r.LiveStock),
			strconv.Itoa(r.ProjectedStock),
			strconv.Itoa(r.Drift),
			strconv.FormatInt(r.LedgerVersion, 10),
			strconv.Itoa(r.EntryCount),
			strconv.Itoa(len(r.ChainBreaks)),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return infra.Attachment{}, err
	}
	return infra.Attachment{Name: "drift.csv", ContentType: "text/csv", Data: buf.Bytes()}, nil
}
