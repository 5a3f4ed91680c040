package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/pkg/distlock"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/sender"
	"github.com/ignite/sendguard/internal/service/audit"
)

const (
	DefaultProcessorInterval = 10 * time.Second
	DefaultProcessorBatch    = 50
	defaultPushTimeout       = 15 * time.Second
)

// LeadQueue is what the processor needs from the lead service.
type LeadQueue interface {
	ListReady(ctx context.Context, limit int) ([]domain.Lead, error)
	Activate(ctx context.Context, id string) (bool, error)
	Defer(ctx context.Context, id string) error
}

// Gate decides whether a lead may be activated on its campaign.
type Gate interface {
	CanExecute(ctx context.Context, campaignID, leadID string) bool
}

// ProcessResult summarises one processor tick.
type ProcessResult struct {
	Considered int
	Activated  int
	Held       int
	PushFailed int
	Errors     int
}

// Processor moves held, routed leads to active when the gate allows it and
// hands them to the sender.
type Processor struct {
	leads       LeadQueue
	gate        Gate
	pusher      sender.Pusher
	audit       audit.Recorder
	batchSize   int
	pushTimeout time.Duration

	loop *loop
}

// NewProcessor creates a processor. Zero interval or batch use the defaults.
func NewProcessor(leads LeadQueue, g Gate, p sender.Pusher, rec audit.Recorder, interval time.Duration, batch int) *Processor {
	if interval <= 0 {
		interval = DefaultProcessorInterval
	}
	if batch <= 0 {
		batch = DefaultProcessorBatch
	}
	if p == nil {
		p = sender.NoopPusher{}
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	pr := &Processor{
		leads:       leads,
		gate:        g,
		pusher:      p,
		audit:       rec,
		batchSize:   batch,
		pushTimeout: defaultPushTimeout,
	}
	pr.loop = newLoop("processor", interval, func(ctx context.Context) error {
		_, err := pr.process(ctx)
		return err
	})
	return pr
}

// SetLocker enables cross-replica tick locking.
func (p *Processor) SetLocker(f distlock.Factory) { p.loop.setLocker(f, 0) }

// SetPushTimeout bounds each sender call.
func (p *Processor) SetPushTimeout(d time.Duration) {
	if d > 0 {
		p.pushTimeout = d
	}
}

// Start begins the polling loop.
func (p *Processor) Start() error { return p.loop.start() }

// Stop waits for the in-flight tick to finish.
func (p *Processor) Stop() { p.loop.stop() }

// Stats reports the tick counters.
func (p *Processor) Stats() Stats { return p.loop.stats() }

// Tick runs one guarded pass. It returns ErrTickSkipped when a pass is
// already running.
func (p *Processor) Tick(ctx context.Context) (ProcessResult, error) {
	var res ProcessResult
	err := p.loop.once(ctx, func(ctx context.Context) error {
		var err error
		res, err = p.process(ctx)
		return err
	})
	return res, err
}

func (p *Processor) process(ctx context.Context) (ProcessResult, error) {
	var res ProcessResult

	leads, err := p.leads.ListReady(ctx, p.batchSize)
	if err != nil {
		return res, fmt.Errorf("list ready leads: %w", err)
	}

	for _, l := range leads {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if l.AssignedCampaignID == nil {
			continue
		}
		res.Considered++
		campaignID := *l.AssignedCampaignID

		if !p.gate.CanExecute(ctx, campaignID, l.ID) {
			res.Held++
			if err := p.leads.Defer(ctx, l.ID); err != nil {
				res.Errors++
				logger.Warn("defer held lead failed", "lead_id", l.ID, "error", err)
			}
			continue
		}

		activated, err := p.leads.Activate(ctx, l.ID)
		if err != nil {
			res.Errors++
			logger.Error("activate lead failed", "lead_id", l.ID, "error", err)
			continue
		}
		if !activated {
			// Another processor got there first.
			continue
		}
		res.Activated++
		p.audit.Record(ctx, audit.New(domain.EntityLead, l.ID, domain.TriggerProcessor, "activated",
			fmt.Sprintf("activated on campaign %s", campaignID)))

		pushCtx, cancel := context.WithTimeout(ctx, p.pushTimeout)
		err = p.pusher.PushLead(pushCtx, campaignID, l)
		cancel()
		if err != nil {
			res.PushFailed++
			logger.Error("push lead failed", "lead_id", l.ID, "campaign_id", campaignID, "error", err)
			p.audit.Record(ctx, audit.New(domain.EntityLead, l.ID, domain.TriggerProcessor, "push_failed",
				fmt.Sprintf("campaign %s: %v", campaignID, err)))
		}
	}

	if res.Considered > 0 {
		logger.Info("processor tick", "considered", res.Considered, "activated", res.Activated,
			"held", res.Held, "push_failed", res.PushFailed)
	}
	return res, nil
}
