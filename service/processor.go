package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/types"
)

// Emitter re-emits an updated event to downstream consumers.
type Emitter interface {
	Reemit(ctx context.Context, event types.Event) error
}

// RowWriter appends rows to an analytics table.
type RowWriter interface {
	InsertRows(ctx context.Context, table types.TableRef, rows []types.Row) error
}

// NewRow builds the analytics row for an assessed event.
func NewRow(event types.Event, assessment *types.Assessment) types.Row {
	return types.Row{
		ClientID: event.String(types.FieldClientID),
		RiskAnalysis: types.RowRiskAnalysis{
			Score:                  assessment.RiskAnalysis.Score,
			Reasons:                assessment.RiskAnalysis.Reasons,
			ExtendedVerdictReasons: assessment.RiskAnalysis.ExtendedVerdictReasons,
		},
		TokenProperties: types.RowTokenProperties{
			Valid:         assessment.TokenProperties.Valid,
			InvalidReason: assessment.TokenProperties.InvalidReason,
		},
		Timestamp: assessment.TokenProperties.CreateTime,
	}
}

// AttachToEvent returns a copy of event without the raw payload and with the
// score and validity attached.
func AttachToEvent(event types.Event, assessment *types.Assessment) types.Event {
	out := event.Clone()
	delete(out, types.FieldRecaptcha)
	out[types.FieldScore] = assessment.RiskAnalysis.Score
	out[types.FieldValid] = assessment.TokenProperties.Valid
	return out
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	// AttachToEventData re-emits the event with the score attached.
	AttachToEventData bool

	// OutputToStore writes an analytics row per assessed event.
	OutputToStore bool

	// Table receives the rows when OutputToStore is set.
	Table types.TableRef
}

// Processor assesses an event and forwards the outcome to the sinks.
type Processor struct {
	service *Service
	emitter Emitter
	rows    RowWriter
	options ProcessorOptions
}

// NewProcessor creates a Processor. Sinks may be nil when the matching
// option is off.
func NewProcessor(svc *Service, emitter Emitter, rows RowWriter, opts ProcessorOptions) (*Processor, error) {
	if svc == nil {
		return nil, fmt.Errorf("processor: service is required")
	}
	if opts.AttachToEventData && emitter == nil {
		return nil, fmt.Errorf("processor: emitter is required when attaching to event data")
	}
	if opts.OutputToStore && rows == nil {
		return nil, fmt.Errorf("processor: row writer is required when writing rows")
	}
	return &Processor{service: svc, emitter: emitter, rows: rows, options: opts}, nil
}

// Process assesses event and runs the enabled sinks concurrently. Events
// without a payload succeed without doing anything.
func (p *Processor) Process(ctx context.Context, run *cache.Run, event types.Event) error {
	assessment, err := p.service.Assess(ctx, run, event)
	if errors.Is(err, ErrMissingPayload) {
		return nil
	}
	if err != nil {
		p.service.logError(run, "processor: assessment failed", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if p.options.AttachToEventData {
		g.Go(func() error {
			p.service.log(run, "sending updated event data to tags")
			return p.emitter.Reemit(gctx, AttachToEvent(event, assessment))
		})
	}
	if p.options.OutputToStore {
		g.Go(func() error {
			return p.rows.InsertRows(gctx, p.options.Table, []types.Row{NewRow(event, assessment)})
		})
	}

	if err := g.Wait(); err != nil {
		p.service.logError(run, "processor: output failed", err)
		return err
	}
	return nil
}
