package collector

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Assembler fans out every collector for one asset and flattens the
// results into a snapshot.
type Assembler struct {
	collectors []Collector
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

func NewAssembler(tracer trace.Tracer, collectors ...Collector) *Assembler {
	return &Assembler{
		collectors: collectors,
		tracer:     tracer,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

type outcome struct {
	domain domain.SignalDomain
	bundle domain.Bundle
	err    error
}

// Assemble returns the snapshot, one CollectorError per failed collector,
// and a non-nil error only when the market bundle is unavailable.
func (a *Assembler) Assemble(ctx context.Context, asset domain.Asset, aux *domain.Auxiliary) (*domain.Snapshot, []error, error) {
	ctx, span := a.tracer.Start(ctx, "assembler.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("asset", asset.ID))

	now := a.now().UTC()
	req := Request{Asset: asset, Now: now, Aux: aux}
	results := make([]outcome, len(a.collectors))

	// Branches never return an error, so Wait always sees every collector.
	var g errgroup.Group
	for i, c := range a.collectors {
		g.Go(func() error {
			results[i] = runCollector(ctx, c, req)
			return nil
		})
	}
	_ = g.Wait()

	byDomain := make(map[domain.SignalDomain]outcome, len(results))
	for _, r := range results {
		byDomain[r.domain] = r
	}

	snap := &domain.Snapshot{
		ID:        a.newID(),
		Timestamp: now,
		AssetID:   asset.ID,
		Symbol:    asset.Symbol,
	}
	var warnings []error
	var marketErr error
	marketOK := false
	for _, d := range domain.DomainOrder {
		r, ok := byDomain[d]
		if !ok {
			continue
		}
		if r.err != nil {
			warnings = append(warnings, &domain.CollectorError{Domain: d, Asset: asset.Symbol, Err: r.err})
			if d == domain.DomainMarket {
				marketErr = r.err
			}
			continue
		}
		r.bundle.ApplyTo(snap)
		if d == domain.DomainMarket {
			marketOK = snap.MarketSignals.Available()
		}
	}
	span.SetAttributes(attribute.Int("collector_failures", len(warnings)))

	if !marketOK {
		if marketErr != nil {
			return nil, warnings, fmt.Errorf("%s: %w: %w", asset.Symbol, domain.ErrMandatorySignalMissing, marketErr)
		}
		return nil, warnings, fmt.Errorf("%s: %w", asset.Symbol, domain.ErrMandatorySignalMissing)
	}
	return snap, warnings, nil
}

func runCollector(ctx context.Context, c Collector, req Request) (out outcome) {
	out.domain = c.Domain()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("domain", string(out.domain)).Str("asset", req.Asset.Symbol).Interface("panic", r).Msg("collector panicked")
			out.bundle = nil
			out.err = fmt.Errorf("collector panicked: %v", r)
		}
	}()

	bundle, err := c.Collect(ctx, req)
	if err == nil && bundle == nil {
		err = fmt.Errorf("collector returned no bundle")
	}
	if err == nil && bundle.Domain() != out.domain {
		err = fmt.Errorf("collector returned %s bundle", bundle.Domain())
	}
	out.bundle, out.err = bundle, err
	return out
}
