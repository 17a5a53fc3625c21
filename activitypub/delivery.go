package activitypub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

var backoffMinutes = []int{1, 5, 15, 60, 240, 1440}

const maxDeliveryAttempts = 10

// DeliveryWorker drains the delivery queue, signing each item with the key
// of the local actor that produced it.
type DeliveryWorker struct {
	transport Transport
	queue     domain.DeliveryQueue
	store     domain.Store
	interval  time.Duration
	batch     int
}

func NewDeliveryWorker(transport Transport, queue domain.DeliveryQueue, store domain.Store) *DeliveryWorker {
	return &DeliveryWorker{
		transport: transport,
		queue:     queue,
		store:     store,
		interval:  10 * time.Second,
		batch:     50,
	}
}

// Run processes the queue every interval until ctx is done.
func (w *DeliveryWorker) Run(ctx context.Context) {
	log.Info("Starting ActivityPub delivery worker...")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessQueue(ctx)
		}
	}
}

// ProcessQueue attempts every due delivery once.
func (w *DeliveryWorker) ProcessQueue(ctx context.Context) {
	items, err := w.queue.ReadPendingDeliveries(ctx, w.batch)
	if err != nil {
		log.Errorf("DeliveryWorker: Failed to read queue: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	log.Infof("DeliveryWorker: Processing %d pending deliveries", len(items))

	for _, item := range items {
		if err := w.deliver(ctx, &item); err != nil {
			item.Attempts++
			wait := backoffMinutes[min(item.Attempts-1, len(backoffMinutes)-1)]
			deliveriesTotal.WithLabelValues("failed").Inc()

			if item.Attempts >= maxDeliveryAttempts {
				log.Warnf("DeliveryWorker: Giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
				deliveryQueueGiveUps.Inc()
				if err := w.queue.DeleteDelivery(ctx, item.Id); err != nil {
					log.Errorf("DeliveryWorker: Failed to drop %s: %v", item.Id, err)
				}
				continue
			}
			log.Warnf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
				item.InboxURI, item.Attempts, wait, err)
			next := time.Now().Add(time.Duration(wait) * time.Minute)
			if err := w.queue.UpdateDeliveryAttempt(ctx, item.Id, item.Attempts, next); err != nil {
				log.Errorf("DeliveryWorker: Failed to reschedule %s: %v", item.Id, err)
			}
			continue
		}

		deliveriesTotal.WithLabelValues("delivered").Inc()
		log.Infof("DeliveryWorker: Successfully delivered to %s", item.InboxURI)
		if err := w.queue.DeleteDelivery(ctx, item.Id); err != nil {
			log.Errorf("DeliveryWorker: Failed to remove %s: %v", item.Id, err)
		}
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, item *domain.DeliveryQueueItem) error {
	keyPem, err := w.signingKey(ctx, item.ActorURI)
	if err != nil {
		return err
	}
	return w.transport.Deliver(ctx, item.InboxURI, &OutgoingActivity{
		ActivityID:    item.Id.String(),
		ActorID:       item.ActorURI,
		Body:          []byte(item.ActivityJSON),
		KeyID:         KeyID(item.ActorURI),
		PrivateKeyPem: keyPem,
	})
}

// signingKey finds the private key of a local person or community.
func (w *DeliveryWorker) signingKey(ctx context.Context, actorID string) (string, error) {
	person, err := w.store.ReadPersonByActorID(ctx, actorID)
	if err == nil && person.PrivateKey != "" {
		return person.PrivateKey, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	community, err := w.store.ReadCommunityByActorID(ctx, actorID)
	if err == nil && community.PrivateKey != "" {
		return community.PrivateKey, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return "", fmt.Errorf("no local signing key for %s", actorID)
}
