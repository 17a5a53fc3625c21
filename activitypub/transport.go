package activitypub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrGone is returned by Fetch when the object's home instance answers 404 or 410.
var ErrGone = errors.New("object is gone")

// maxObjectSize bounds fetched documents.
const maxObjectSize = 1 << 20

// Transport moves documents between instances.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Deliver(ctx context.Context, inbox string, activity *OutgoingActivity) error
}

// OutgoingActivity is a serialized activity with the key that signs it.
type OutgoingActivity struct {
	ActivityID    string
	ActorID       string
	Body          []byte
	KeyID         string
	PrivateKeyPem string
}

// leveledLog adapts the package logger for retryablehttp. Client errors are
// logged as warnings since the request is usually retried.
type leveledLog struct{}

func (leveledLog) Error(msg string, keysAndValues ...any) { log.Warn(msg, keysAndValues...) }
func (leveledLog) Warn(msg string, keysAndValues ...any)  { log.Warn(msg, keysAndValues...) }
func (leveledLog) Info(msg string, keysAndValues ...any)  { log.Debug(msg, keysAndValues...) }
func (leveledLog) Debug(msg string, keysAndValues ...any) { log.Debug(msg, keysAndValues...) }

// HTTPTransport fetches with content negotiation and delivers signed POSTs.
// URLs that answered 404 or 410 are remembered for a while and not asked again.
type HTTPTransport struct {
	client    *retryablehttp.Client
	userAgent string
	gone      *expirable.LRU[string, struct{}]
}

func NewHTTPTransport(settings *util.Settings) *HTTPTransport {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = 20 * time.Second
	client.Logger = retryablehttp.LeveledLogger(leveledLog{})
	return &HTTPTransport{
		client:    client,
		userAgent: util.UserAgent(settings.Hostname),
		gone:      expirable.NewLRU[string, struct{}](10_000, nil, time.Hour),
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	if _, ok := t.gone.Get(url); ok {
		return nil, ErrGone
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentType+", "+LDContentType)
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		t.gone.Add(url, struct{}{})
		return nil, ErrGone
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch of %s failed with status: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxObjectSize {
		return nil, fmt.Errorf("object at %s exceeds %d bytes", url, maxObjectSize)
	}
	return body, nil
}

// Deliver signs and POSTs the activity to inbox.
func (t *HTTPTransport) Deliver(ctx context.Context, inbox string, activity *OutgoingActivity) error {
	privateKey, err := ParsePrivateKey(activity.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(activity.Body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	req.Header.Set("User-Agent", t.userAgent)
	if err := SignRequest(req, privateKey, activity.KeyID, activity.Body); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.client.Do(rreq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	log.Debugf("Outbox: Delivered %s to %s", activity.ActivityID, inbox)
	return nil
}

// QueueTransport fetches directly but hands deliveries to the delivery
// queue, where the DeliveryWorker retries them with backoff.
type QueueTransport struct {
	*HTTPTransport
	queue domain.DeliveryQueue
}

func NewQueueTransport(transport *HTTPTransport, queue domain.DeliveryQueue) *QueueTransport {
	return &QueueTransport{HTTPTransport: transport, queue: queue}
}

func (t *QueueTransport) Deliver(ctx context.Context, inbox string, activity *OutgoingActivity) error {
	return t.queue.EnqueueDelivery(ctx, &domain.DeliveryQueueItem{
		InboxURI:     inbox,
		ActorURI:     activity.ActorID,
		ActivityJSON: string(activity.Body),
	})
}
