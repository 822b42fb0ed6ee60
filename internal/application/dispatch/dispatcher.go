package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdaltagent/pdgateway/internal/application/plugin"
	"github.com/pdaltagent/pdgateway/internal/config"
	"github.com/pdaltagent/pdgateway/internal/domain/derrors"
	"github.com/pdaltagent/pdgateway/internal/domain/record"
	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// httpDoer is the subset of *http.Client the dispatcher needs; tests
// substitute a stub.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher runs the background worker pool performing outbound HTTP
// delivery for send_event and send_webhook (C9, §4.9), applying the
// plugin chain's pre-dispatch filter and the §7 retry policy.
type Dispatcher struct {
	cfg     config.DispatchConfig
	queue   *Queue
	plugins *plugin.Host
	http    httpDoer
	log     *logger.Logger
	chains  *chainManager
	sem     *semaphore.Weighted
	rnd     *rand.Rand
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the outbound HTTP client (tests inject a stub).
func WithHTTPClient(c httpDoer) Option {
	return func(d *Dispatcher) { d.http = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New builds a Dispatcher over queue, filtering every task through plugins
// before delivery.
func New(cfg config.DispatchConfig, queue *Queue, plugins *plugin.Host, opts ...Option) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		cfg:     cfg,
		queue:   queue,
		plugins: plugins,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.Default(),
		chains:  newChainManager(),
		sem:     semaphore.NewWeighted(int64(workers)),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendEvent enqueues a send_event task (§4.9). An empty baseURL takes the
// dispatcher's configured default.
func (d *Dispatcher) SendEvent(ctx context.Context, routingKey string, payload record.Map, baseURL, destinationType string) error {
	if baseURL == "" {
		baseURL = d.cfg.BaseURL
	}
	return d.queue.Enqueue(ctx, &Task{
		Kind:            KindSendEvent,
		RoutingKey:      routingKey,
		Payload:         payload,
		BaseURL:         baseURL,
		DestinationType: destinationType,
	})
}

// SendWebhook enqueues a send_webhook task. incidentKey chains it behind
// every other pending webhook task for the same incident (P8); pass ""
// for webhooks with no ordering requirement.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload record.Map, incidentKey string) error {
	return d.queue.Enqueue(ctx, &Task{
		Kind:           KindSendWebhook,
		URL:            url,
		WebhookPayload: payload,
		IncidentKey:    incidentKey,
	})
}

// Run starts the worker pool and the scheduled-retry promoter, blocking
// until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	workers := d.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.workerLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.promoteLoop(ctx)
	}()

	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := d.queue.Dequeue(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("dispatch: queue dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		d.route(ctx, task)
	}
}

func (d *Dispatcher) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.queue.PromoteDue(ctx, time.Now()); err != nil {
				d.log.Error("dispatch: scheduled-task promotion failed", "error", err)
			}
		}
	}
}

// route sends incident-keyed tasks through the chain manager (ordering,
// §5) and fires every other task in its own goroutine bounded by sem.
func (d *Dispatcher) route(ctx context.Context, task *Task) {
	if task.IncidentKey != "" {
		d.chains.submit(task.IncidentKey, task, func(t *Task) { d.execute(ctx, t) })
		return
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	go func() {
		defer d.sem.Release(1)
		d.execute(ctx, task)
	}()
}

func (d *Dispatcher) execute(ctx context.Context, task *Task) {
	switch task.Kind {
	case KindSendEvent:
		d.executeSendEvent(ctx, task)
	case KindSendWebhook:
		d.executeSendWebhook(ctx, task)
	default:
		d.log.Error("dispatch: unknown task kind", "kind", task.Kind)
	}
}

func (d *Dispatcher) executeSendEvent(ctx context.Context, task *Task) {
	outcome := d.filterEventWithSoftTimeout(ctx, task.Payload, task.RoutingKey, task.DestinationType)
	if outcome.Suppressed {
		d.log.Info("send_event suppressed by plugin chain", "routing_key", task.RoutingKey)
		return
	}

	endpoint, err := eventEndpoint(task.BaseURL, outcome.RoutingKey, outcome.DestinationType)
	if err != nil {
		d.log.Error("send_event: cannot resolve endpoint", "routing_key", outcome.RoutingKey, "error", err)
		return
	}

	resp, doErr := d.post(ctx, endpoint, outcome.Event)
	class := classify(resp, doErr)
	closeBody(resp)

	if class == nil {
		return
	}
	if errors.Is(class, derrors.ErrClientInvalid) {
		d.log.Error("send_event: permanent failure, dropping", "routing_key", outcome.RoutingKey, "status", statusOf(resp))
		return
	}

	delay, retry := d.nextDelay(task, class)
	if !retry {
		d.log.Error("send_event: giving up", "routing_key", outcome.RoutingKey, "attempt", task.Attempt, "error", class)
		return
	}

	retryTask := *task
	retryTask.Payload = outcome.Event
	retryTask.RoutingKey = outcome.RoutingKey
	retryTask.DestinationType = outcome.DestinationType
	retryTask.Attempt++
	if err := d.queue.EnqueueAt(ctx, &retryTask, time.Now().Add(delay)); err != nil {
		d.log.Error("send_event: failed to schedule retry", "routing_key", outcome.RoutingKey, "error", err)
	}
}

func (d *Dispatcher) executeSendWebhook(ctx context.Context, task *Task) {
	outcome := d.filterWebhookWithSoftTimeout(ctx, task.WebhookPayload, task.URL)
	if outcome.Suppressed {
		d.log.Info("send_webhook suppressed by plugin chain", "url", task.URL)
		return
	}

	resp, doErr := d.post(ctx, outcome.URL, outcome.Webhook)
	class := classify(resp, doErr)
	closeBody(resp)

	if class == nil {
		return
	}
	if errors.Is(class, derrors.ErrClientInvalid) {
		d.log.Error("send_webhook: permanent failure, dropping", "url", outcome.URL, "status", statusOf(resp))
		return
	}

	delay, retry := d.nextDelay(task, class)
	if !retry {
		d.log.Error("send_webhook: giving up after max attempts", "url", outcome.URL, "attempt", task.Attempt, "error", class)
		return
	}

	retryTask := *task
	retryTask.WebhookPayload = outcome.Webhook
	retryTask.URL = outcome.URL
	retryTask.Attempt++
	if err := d.queue.EnqueueAt(ctx, &retryTask, time.Now().Add(delay)); err != nil {
		d.log.Error("send_webhook: failed to schedule retry", "url", outcome.URL, "error", err)
	}
}

// filterEventWithSoftTimeout runs the plugin chain's filter_event without
// cancelling it: past PluginFilterSoftWait it logs a warning but keeps
// waiting for the real result (§4.9, §5 "5s soft-timeout warning, no
// cancellation").
func (d *Dispatcher) filterEventWithSoftTimeout(ctx context.Context, event record.Map, routingKey, destinationType string) plugin.EventOutcome {
	done := make(chan plugin.EventOutcome, 1)
	go func() {
		done <- d.plugins.FilterEvent(ctx, event, routingKey, destinationType)
	}()

	select {
	case out := <-done:
		return out
	case <-time.After(d.cfg.PluginFilterSoftWait):
		d.log.Warn("plugin filter_event exceeded soft timeout", "routing_key", routingKey)
		return <-done
	}
}

func (d *Dispatcher) filterWebhookWithSoftTimeout(ctx context.Context, webhook record.Map, url string) plugin.WebhookOutcome {
	done := make(chan plugin.WebhookOutcome, 1)
	go func() {
		done <- d.plugins.FilterWebhook(ctx, webhook, url)
	}()

	select {
	case out := <-done:
		return out
	case <-time.After(d.cfg.PluginFilterSoftWait):
		d.log.Warn("plugin filter_webhook exceeded soft timeout", "url", url)
		return <-done
	}
}

func (d *Dispatcher) post(ctx context.Context, url string, payload record.Map) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.http.Do(req)
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
