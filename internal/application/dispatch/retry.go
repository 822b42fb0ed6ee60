package dispatch

import (
	"errors"
	"net/http"
	"time"

	"github.com/pdaltagent/pdgateway/internal/domain/derrors"
)

const maxBackoff = 15 * time.Minute

// classify maps a dispatch attempt's HTTP outcome to the §7 error
// taxonomy. A nil return means success.
func classify(resp *http.Response, doErr error) error {
	if doErr != nil {
		return derrors.ErrTransport
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return derrors.ErrThrottled
	case resp.StatusCode >= 500:
		return derrors.ErrServerError
	case resp.StatusCode >= 400:
		return derrors.ErrClientInvalid
	default:
		return nil
	}
}

// nextDelay decides whether task should be retried after classification
// class and, if so, how long to wait (§7): throttled retries are
// unbounded with jittered backoff, transport/5xx retry with exponential
// backoff (capped at WebhookMaxAttempts for send_webhook, unbounded for
// send_event), and client errors other than 429 are permanent.
func (d *Dispatcher) nextDelay(task *Task, class error) (time.Duration, bool) {
	switch {
	case errors.Is(class, derrors.ErrThrottled):
		return d.throttleDelay(task.Attempt), true
	case errors.Is(class, derrors.ErrServerError), errors.Is(class, derrors.ErrTransport):
		if task.Kind == KindSendWebhook && task.Attempt+1 >= d.cfg.WebhookMaxAttempts {
			return 0, false
		}
		return d.exponentialBackoff(task.Attempt), true
	default:
		return 0, false
	}
}

// exponentialBackoff doubles InitialBackoff per attempt, capped so an
// unbounded send_event retry series never overflows or waits forever.
func (d *Dispatcher) exponentialBackoff(attempt int) time.Duration {
	shift := attempt
	if shift > 20 {
		shift = 20
	}
	delay := d.cfg.InitialBackoff << uint(shift)
	if delay <= 0 || delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// throttleDelay implements uniform(min,max)*(attempt+1) jittered backoff
// for 429s (§7): the multiplier grows with attempt so expected wait times
// are strictly nondecreasing across consecutive throttles (P10).
func (d *Dispatcher) throttleDelay(attempt int) time.Duration {
	span := d.cfg.ThrottledMaxSeconds - d.cfg.ThrottledMinSeconds
	u := d.cfg.ThrottledMinSeconds + d.rnd.Float64()*span
	seconds := u * float64(attempt+1)
	return time.Duration(seconds * float64(time.Second))
}
