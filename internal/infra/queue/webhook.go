package queue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matchd-io/matchd/internal/domain"
	"github.com/matchd-io/matchd/internal/infra/metrics"
	"github.com/matchd-io/matchd/internal/infra/resilience"
)

const (
	webhookUserAgent = "matching-service/1.0"
	signatureHeader  = "X-Signature"
)

// NotifierConfig shapes webhook delivery.
type NotifierConfig struct {
	Secret     string        // HMAC key; empty disables signing
	MaxRetries int           // retries after the first attempt, default 3
	Timeout    time.Duration // per-attempt budget, default 10s
}

// DefaultNotifierConfig returns production defaults.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{MaxRetries: 3, Timeout: 10 * time.Second}
}

// Notifier posts signed completion events to caller-provided URLs. Transient
// failures (5xx, timeouts, network) retry with backoff; anything else after
// the budget is the caller's to log and drop.
type Notifier struct {
	cfg    NotifierConfig
	client *http.Client
	retry  resilience.RetryPolicy
	log    *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(cfg NotifierConfig, log *zap.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultNotifierConfig().Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	retry := resilience.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry:  retry,
		log:    log.Named("webhook"),
	}
}

// event is the webhook body.
type event struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Notify delivers one event. Any 2xx is success; the returned error means
// the event was dropped after the retry budget.
func (n *Notifier) Notify(ctx context.Context, url, jobID string, status domain.JobStatus, data []byte) error {
	body, err := canonicalJSON(event{
		JobID:     jobID,
		Status:    string(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		return fmt.Errorf("encode webhook event: %w", err)
	}
	signature := n.sign(body)

	err = resilience.Retry(ctx, n.retry, func() error {
		return n.post(ctx, url, body, signature)
	})
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		return fmt.Errorf("deliver webhook for job %s: %w", jobID, err)
	}
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
	n.log.Debug("webhook delivered", zap.String("job_id", jobID), zap.String("url", url))
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		// timeouts and connection errors are worth retrying
		return domain.Classify(domain.KindTransientExternal, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return domain.Classify(domain.KindTransientExternal, fmt.Errorf("webhook endpoint returned %d", resp.StatusCode))
	default:
		return domain.Classify(domain.KindWebhookFault, fmt.Errorf("webhook endpoint returned %d", resp.StatusCode))
	}
}

// sign returns the hex HMAC-SHA256 of the canonical body.
func (n *Notifier) sign(body []byte) string {
	if n.cfg.Secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(n.cfg.Secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalJSON serializes v with object keys sorted at every level, so both
// ends compute the signature over identical bytes. encoding/json sorts map
// keys, so a map round-trip canonicalizes the struct encoding.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
