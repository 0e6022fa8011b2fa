package registry

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/rs/zerolog/log"
)

const (
	DefaultShards          = 32
	DefaultStalenessTTL    = 5 * time.Minute
	DefaultSubscriberQueue = 256
)

type Options struct {
	Shards int
	// StalenessTTL of zero disables expiry
	StalenessTTL    time.Duration
	SubscriberQueue int
	Now             func() time.Time
}

// Registry holds the last known position of every vehicle
type Registry struct {
	shards []*shard

	stalenessTTL    time.Duration
	subscriberQueue int
	now             func() time.Time

	// Publishers hold this shared while they mutate a slot and fan the delta out.
	// Subscribe holds it exclusively so the snapshot and registration happen at one instant.
	feedMutex   sync.RWMutex
	subscribers map[*Subscription]struct{}
}

type shard struct {
	mutex sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	mutex     sync.RWMutex
	position  ctdf.VehiclePosition
	populated bool
	removed   bool
}

func New(options Options) *Registry {
	if options.Shards <= 0 {
		options.Shards = DefaultShards
	}
	if options.SubscriberQueue <= 0 {
		options.SubscriberQueue = DefaultSubscriberQueue
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	registry := &Registry{
		shards:          make([]*shard, options.Shards),
		stalenessTTL:    options.StalenessTTL,
		subscriberQueue: options.SubscriberQueue,
		now:             options.Now,
		subscribers:     map[*Subscription]struct{}{},
	}
	for i := range registry.shards {
		registry.shards[i] = &shard{slots: map[string]*slot{}}
	}

	return registry
}

func (r *Registry) shardFor(vehicleID string) *shard {
	hash := fnv.New32a()
	hash.Write([]byte(vehicleID))

	return r.shards[hash.Sum32()%uint32(len(r.shards))]
}

func (s *shard) getOrCreate(vehicleID string) *slot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, ok := s.slots[vehicleID]
	if !ok {
		existing = &slot{}
		s.slots[vehicleID] = existing
	}

	return existing
}

// Publish records a new position for the vehicle. Arrival order wins and observedAt is kept as metadata only.
func (r *Registry) Publish(vehicleID string, latitude float64, longitude float64, observedAt time.Time) error {
	if vehicleID == "" {
		return ctdf.NewValidationError("vehicle identifier is required")
	}

	location := ctdf.Location{Latitude: latitude, Longitude: longitude}
	if err := location.Validate(); err != nil {
		return err
	}

	r.feedMutex.RLock()
	defer r.feedMutex.RUnlock()

	for {
		vehicleSlot := r.shardFor(vehicleID).getOrCreate(vehicleID)

		vehicleSlot.mutex.Lock()
		if vehicleSlot.removed {
			// Lost a race with Remove, the shard now has a fresh slot for us
			vehicleSlot.mutex.Unlock()
			continue
		}

		kind := DeltaUpdate
		if !vehicleSlot.populated {
			kind = DeltaCreate
			vehicleSlot.populated = true
		}
		vehicleSlot.position = ctdf.VehiclePosition{
			VehicleID:  vehicleID,
			Location:   location,
			ObservedAt: observedAt,
			ReceivedAt: r.now(),
		}

		// Fan out while still holding the slot so deltas for one vehicle reach subscribers in arrival order
		r.broadcast(Delta{Kind: kind, VehicleID: vehicleID, Position: vehicleSlot.position})
		vehicleSlot.mutex.Unlock()

		return nil
	}
}

func (r *Registry) Get(vehicleID string) (ctdf.VehiclePosition, error) {
	s := r.shardFor(vehicleID)

	s.mutex.RLock()
	vehicleSlot, ok := s.slots[vehicleID]
	s.mutex.RUnlock()

	if ok {
		vehicleSlot.mutex.RLock()
		defer vehicleSlot.mutex.RUnlock()

		if vehicleSlot.populated && !vehicleSlot.removed {
			return vehicleSlot.position, nil
		}
	}

	return ctdf.VehiclePosition{}, ctdf.NewNotFoundError("vehicle position", vehicleID)
}

func (r *Registry) Snapshot() map[string]ctdf.VehiclePosition {
	snapshot := map[string]ctdf.VehiclePosition{}

	for _, s := range r.shards {
		s.mutex.RLock()
		for vehicleID, vehicleSlot := range s.slots {
			vehicleSlot.mutex.RLock()
			if vehicleSlot.populated && !vehicleSlot.removed {
				snapshot[vehicleID] = vehicleSlot.position
			}
			vehicleSlot.mutex.RUnlock()
		}
		s.mutex.RUnlock()
	}

	return snapshot
}

func (r *Registry) Len() int {
	return len(r.Snapshot())
}

// Remove drops the vehicle and notifies subscribers, returning false if it was not present
func (r *Registry) Remove(vehicleID string) bool {
	return r.removeIf(vehicleID, func(ctdf.VehiclePosition) bool { return true })
}

func (r *Registry) removeIf(vehicleID string, condition func(ctdf.VehiclePosition) bool) bool {
	r.feedMutex.RLock()
	defer r.feedMutex.RUnlock()

	s := r.shardFor(vehicleID)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	vehicleSlot, ok := s.slots[vehicleID]
	if !ok {
		return false
	}

	vehicleSlot.mutex.Lock()
	defer vehicleSlot.mutex.Unlock()

	if vehicleSlot.populated && !condition(vehicleSlot.position) {
		return false
	}

	vehicleSlot.removed = true
	delete(s.slots, vehicleID)

	if !vehicleSlot.populated {
		return false
	}

	r.broadcast(Delta{Kind: DeltaRemove, VehicleID: vehicleID, Position: vehicleSlot.position})

	return true
}

// ExpireStale removes every vehicle that has not published within the staleness TTL
func (r *Registry) ExpireStale() []string {
	if r.stalenessTTL <= 0 {
		return nil
	}

	cutoff := r.now().Add(-r.stalenessTTL)
	isStale := func(position ctdf.VehiclePosition) bool {
		return position.ReceivedAt.Before(cutoff)
	}

	var candidates []string
	for vehicleID, position := range r.Snapshot() {
		if isStale(position) {
			candidates = append(candidates, vehicleID)
		}
	}

	// Re-checked under the slot lock in case the vehicle published since the snapshot
	var expired []string
	for _, vehicleID := range candidates {
		if r.removeIf(vehicleID, isStale) {
			expired = append(expired, vehicleID)
		}
	}

	return expired
}

func (r *Registry) StartExpiry(ctx context.Context, interval time.Duration) {
	if r.stalenessTTL <= 0 || interval <= 0 {
		log.Info().Msg("Vehicle position expiry disabled")
		return
	}

	log.Info().Dur("ttl", r.stalenessTTL).Dur("interval", interval).Msg("Starting vehicle position expiry")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := r.ExpireStale()

			if len(expired) != 0 {
				log.Info().Strs("vehicles", expired).Msgf("Expired %d stale vehicle positions", len(expired))
			}
		}
	}
}

func (r *Registry) broadcast(delta Delta) {
	for subscription := range r.subscribers {
		subscription.push(delta)
	}
}

// Subscribe returns a subscription that first yields a create delta for every known vehicle then every change after that
func (r *Registry) Subscribe() *Subscription {
	r.feedMutex.Lock()
	defer r.feedMutex.Unlock()

	snapshot := r.Snapshot()

	subscription := newSubscription(r, r.subscriberQueue+len(snapshot))
	for vehicleID, position := range snapshot {
		subscription.push(Delta{Kind: DeltaCreate, VehicleID: vehicleID, Position: position})
	}
	r.subscribers[subscription] = struct{}{}

	go subscription.pump()

	return subscription
}

func (r *Registry) unsubscribe(subscription *Subscription) {
	r.feedMutex.Lock()
	defer r.feedMutex.Unlock()

	delete(r.subscribers, subscription)
}

func (r *Registry) SubscriberCount() int {
	r.feedMutex.RLock()
	defer r.feedMutex.RUnlock()

	return len(r.subscribers)
}
