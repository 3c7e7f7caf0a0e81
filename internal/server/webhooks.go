package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"clockline/internal/config"
	"clockline/internal/engine"
	"clockline/internal/repo"
)

const (
	defaultWebhookInterval = 5 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher forwards new history entries to configured webhook URLs
// for chat-channel notification. Delivery is at-most-once: the cursor
// advances regardless of delivery failures so a dead endpoint can never
// stall the feed. The cursor is the (at, id) pair of the last handled row;
// timestamps alone are second-granularity and would skip rows landing in the
// same second the cursor just passed.
type webhookDispatcher struct {
	repo     repo.Repo
	webhooks []config.WebhookConfig
	client   *http.Client
	cursorAt string
	cursorID string
	log      zerolog.Logger
}

func startWebhookDispatcher(e *engine.Engine, log zerolog.Logger) {
	if e.DB == nil || e.Config.Catalog == nil || len(e.Config.Catalog.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		repo:     e.Repo,
		webhooks: e.Config.Catalog.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursorAt: time.Now().UTC().Format(time.RFC3339),
		log:      log,
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatch()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatch() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWebhookTimeout)
	defer cancel()
	records, err := d.repo.ListActionsAfter(ctx, d.cursorAt, d.cursorID, defaultWebhookBatch)
	if err != nil {
		d.log.Warn().Err(err).Msg("webhook dispatch: list history")
		return
	}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		for _, wh := range d.webhooks {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			res, err := d.client.Do(req)
			if err != nil {
				d.log.Warn().Err(err).Str("url", wh.URL).Msg("webhook delivery failed")
				continue
			}
			res.Body.Close()
		}
		d.cursorAt, d.cursorID = rec.At, rec.ID
	}
}
