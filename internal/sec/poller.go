package sec

import (
	"context"

	"go.uber.org/zap"

	"insiderlens/internal/config"
	"insiderlens/internal/jobqueue"
	"insiderlens/internal/repository"
)

// Poller watches the current events feed and turns fresh Form 4 filings into
// fetch jobs. Feed-discovered filings get the AI judge by default.
type Poller struct {
	client *Client
	queue  *jobqueue.Queue
	repo   repository.Repository
	cfg    config.SECConfig
	log    *zap.Logger
}

func NewPoller(client *Client, queue *jobqueue.Queue, repo repository.Repository, cfg config.SECConfig, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{client: client, queue: queue, repo: repo, cfg: cfg, log: log}
}

// PollOnce reads the feed and enqueues one fetch job per new filing. The
// dedupe key makes re-seeing an accession a no-op, so overlap between polls
// is harmless.
func (p *Poller) PollOnce(ctx context.Context) error {
	entries, err := p.client.GetCurrentForm4Feed(ctx, p.cfg.CurrentFeedMax)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, entry := range entries {
		if entry.Role != "Issuer" || entry.CIK == "" {
			continue
		}
		inserted, err := p.queue.Enqueue(ctx,
			jobqueue.TypeFetchAccessionDocs,
			jobqueue.KeyFetch(entry.AccessionNumber),
			jobqueue.AccessionPayload{
				AccessionNumber: entry.AccessionNumber,
				IssuerCIK:       entry.CIK,
				AIRequested:     true,
			},
			jobqueue.EnqueueOptions{})
		if err != nil {
			return err
		}
		if inserted {
			enqueued++
		}
	}
	if enqueued > 0 {
		p.log.Info("form4 feed poll",
			zap.Int("entries", len(entries)),
			zap.Int("enqueued", enqueued))
	}
	return nil
}
