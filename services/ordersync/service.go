package ordersync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"ordersync/lib/htmlutil"
	"ordersync/lib/pacing"
	"ordersync/lib/renderer"
	"ordersync/lib/scrapers/instacart"
	"ordersync/lib/timezone"
	"ordersync/services/ordersync/dataset"
	"ordersync/services/ordersync/db"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("services/ordersync")

var ErrConflictingCursor = fmt.Errorf(
	"an explicit cursor cannot be combined with a non-empty existing dataset")

type Options struct {
	DatasetPath string
	// Cursor optionally overrides the resume point ("2006-01-02 15:04").
	// Mutually exclusive with a non-empty existing dataset, whose own
	// last record is otherwise the implicit cursor.
	Cursor string

	// PaceMin/PaceMax bound the randomized delay between successive
	// detail fetches.
	PaceMin time.Duration
	PaceMax time.Duration

	// Checkpoint persists after every enriched order instead of once at
	// the end of the run, trading extra writes for crash resilience.
	Checkpoint bool

	// PhotoDir, when set, archives delivery photos next to the dataset.
	PhotoDir string

	// Journal, when set, records one row per run.
	Journal *sql.DB

	Client instacart.ClientOptions
}

// Service owns one sync run end to end: session, pagination,
// enrichment, merge, persist. The renderer is acquired from the
// factory at the start of a run and released on every exit path.
type Service struct {
	factory renderer.Factory
	opts    Options
	qry     *db.Queries
	photos  *resty.Client
}

func NewService(factory renderer.Factory, opts Options) Service {
	if opts.PaceMin == 0 && opts.PaceMax == 0 {
		opts.PaceMin = time.Second * 5
		opts.PaceMax = time.Second * 15
	}
	// list-load pacing follows the run's configured range unless the
	// caller tuned the client separately
	if opts.Client.PaceMin == 0 && opts.Client.PaceMax == 0 {
		opts.Client.PaceMin = opts.PaceMin
		opts.Client.PaceMax = opts.PaceMax
	}
	s := Service{
		factory: factory,
		opts:    opts,
	}
	if opts.Journal != nil {
		s.qry = db.New(opts.Journal)
	}
	if opts.PhotoDir != "" {
		s.photos = newPhotoClient()
	}
	return s
}

type runStats struct {
	fetched  int
	degraded int
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Run executes a full sync and returns the resulting dataset. Fatal
// errors (session, list fetch, configuration, malformed dataset) abort
// before anything new is persisted; per-order enrichment failures only
// degrade their own record.
func (s Service) Run(ctx context.Context) (dataset.Dataset, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	existing, err := dataset.Load(s.opts.DatasetPath)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	cursor, err := s.resolveCursor(ctx, existing)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	runID := s.journalStart(ctx)

	rend, err := s.factory(ctx)
	if err != nil {
		err = fmt.Errorf("provision renderer: %w", err)
		fail(span, err)
		s.journalFinish(ctx, runID, runStats{}, err)
		return nil, err
	}
	defer func() {
		// release must survive cancellation
		err := rend.Quit(context.WithoutCancel(ctx))
		if err != nil {
			slog.WarnContext(ctx, "failed to release renderer", "err", err)
		}
	}()

	client := instacart.NewClient(rend, htmlutil.DocumentParser{}, s.opts.Client)

	result, stats, err := s.sync(ctx, client, existing, cursor)
	s.journalFinish(ctx, runID, stats, err)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("orders_fetched", stats.fetched),
		attribute.Int("orders_degraded", stats.degraded),
	)
	return result, nil
}

func (s Service) resolveCursor(ctx context.Context, existing dataset.Dataset) (time.Time, error) {
	if s.opts.Cursor == "" {
		cursor := existing.Cursor()
		if !cursor.IsZero() {
			slog.InfoContext(ctx, "resuming from existing dataset",
				"cursor", cursor.Format(dataset.TimeLayout))
		}
		return cursor, nil
	}

	// the two cursor sources must not disagree silently
	if len(existing) > 0 {
		return time.Time{}, ErrConflictingCursor
	}
	cursor, err := dataset.ParseDateTime(s.opts.Cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor %q: %w", s.opts.Cursor, err)
	}
	return cursor, nil
}

func (s Service) sync(ctx context.Context, client *instacart.Client, existing dataset.Dataset, cursor time.Time) (dataset.Dataset, runStats, error) {
	var stats runStats

	err := client.EnsureSession(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("establish session: %w", err)
	}
	err = pacing.Sleep(ctx, s.opts.PaceMin, s.opts.PaceMax)
	if err != nil {
		return nil, stats, err
	}

	orders, err := client.FetchOrders(ctx, cursor)
	if err != nil {
		return nil, stats, fmt.Errorf("fetch order list: %w", err)
	}
	stats.fetched = len(orders)
	slog.InfoContext(ctx, "fetched order list", "new_orders", len(orders))

	result := existing
	var pending []dataset.Order
	for i := range orders {
		order := &orders[i]

		if !order.Cancelled {
			err := pacing.Sleep(ctx, s.opts.PaceMin, s.opts.PaceMax)
			if err != nil {
				return nil, stats, err
			}
			degraded, err := client.EnrichOrder(ctx, order)
			if err != nil {
				return nil, stats, err
			}
			if degraded {
				stats.degraded++
			}
			if s.photos != nil && order.DeliveryPhotoUrl != nil {
				s.archivePhoto(ctx, *order)
			}
		}

		if s.opts.Checkpoint {
			result = dataset.Merge(result, []dataset.Order{*order})
			err := result.Save(s.opts.DatasetPath)
			if err != nil {
				return nil, stats, fmt.Errorf("checkpoint dataset: %w", err)
			}
		} else {
			pending = append(pending, *order)
		}
	}

	if !s.opts.Checkpoint {
		result = dataset.Merge(result, pending)
		err := result.Save(s.opts.DatasetPath)
		if err != nil {
			return nil, stats, fmt.Errorf("persist dataset: %w", err)
		}
	}

	slog.InfoContext(ctx, "dataset persisted",
		"path", s.opts.DatasetPath,
		"total_orders", len(result),
		"degraded", stats.degraded,
	)
	return result, stats, nil
}

func (s Service) journalStart(ctx context.Context) int64 {
	if s.qry == nil {
		return 0
	}
	id, err := s.qry.CreateSyncRun(ctx, timezone.Now().Unix())
	if err != nil {
		slog.WarnContext(ctx, "failed to journal run start", "err", err)
		return 0
	}
	return id
}

func (s Service) journalFinish(ctx context.Context, id int64, stats runStats, runErr error) {
	if s.qry == nil || id == 0 {
		return
	}

	outcome := "ok"
	errText := sql.NullString{}
	if runErr != nil {
		outcome = "failed"
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	// the journal row should land even when the run was cancelled
	err := s.qry.FinishSyncRun(context.WithoutCancel(ctx), db.FinishSyncRunParams{
		FinishedAt:     sql.NullInt64{Int64: timezone.Now().Unix(), Valid: true},
		OrdersFetched:  int64(stats.fetched),
		OrdersDegraded: int64(stats.degraded),
		Outcome:        outcome,
		Error:          errText,
		ID:             id,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to journal run finish", "err", err)
	}
}
