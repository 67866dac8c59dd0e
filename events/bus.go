// Package events is the cross-entity event bus: broadcast, targeted,
// and fan-out delivery with queued, non-recursive dispatch.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

type SubscriberID uint64

// Envelope wraps one emitted event. Target is nil for broadcasts.
type Envelope struct {
	Key     string
	Target  *scene.EntityID
	Payload any
	Time    time.Time
}

// Handler receives one event. Errors are logged and isolated; the
// remaining subscribers still run.
type Handler func(Envelope) error

type subscription struct {
	id      SubscriberID
	owner   scene.EntityID
	handler Handler
}

type entityKey struct {
	entity scene.EntityID
	key    string
}

// Bus queues emitted events and delivers them once per Pump. Events
// emitted during delivery land in the next pump, so dispatch never
// recurses.
type Bus struct {
	mu      sync.Mutex
	nextSub SubscriberID
	global  map[string][]*subscription
	scoped  map[entityKey][]*subscription
	byOwner map[scene.EntityID][]SubscriberID
	queue   []Envelope
	lg      *zap.Logger
}

func NewBus(lg *zap.Logger) *Bus {
	return &Bus{
		nextSub: 1,
		global:  map[string][]*subscription{},
		scoped:  map[entityKey][]*subscription{},
		byOwner: map[scene.EntityID][]SubscriberID{},
		lg:      lg,
	}
}

// On subscribes globally to key. Owner bounds the subscription's
// lifetime; pass scene.NoEntity for host-owned subscriptions.
func (b *Bus) On(owner scene.EntityID, key string, h Handler) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{id: b.allocSub(), owner: owner, handler: h}
	b.global[key] = append(b.global[key], sub)
	b.trackOwner(sub)
	return sub.id
}

// OnEntity subscribes to events targeted at (entity, key). Broadcast
// emits of the same key do not reach it.
func (b *Bus) OnEntity(owner, entity scene.EntityID, key string, h Handler) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{id: b.allocSub(), owner: owner, handler: h}
	k := entityKey{entity: entity, key: key}
	b.scoped[k] = append(b.scoped[k], sub)
	b.trackOwner(sub)
	return sub.id
}

// Off removes one subscription by id.
func (b *Bus) Off(id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.global {
		b.global[key] = dropSub(subs, id)
	}
	for key, subs := range b.scoped {
		b.scoped[key] = dropSub(subs, id)
	}
}

// DropOwner removes every subscription owned by entity. Called when an
// entity is destroyed, once per destroyed id including descendants.
func (b *Bus) DropOwner(entity scene.EntityID) {
	b.mu.Lock()
	ids := b.byOwner[entity]
	delete(b.byOwner, entity)
	b.mu.Unlock()
	for _, id := range ids {
		b.Off(id)
	}
}

// Emit broadcasts to every subscriber of key on the next pump.
func (b *Bus) Emit(key string, payload any) {
	b.enqueue(Envelope{Key: key, Payload: payload, Time: time.Now()})
}

// EmitTo delivers only to subscribers registered against (target, key).
// Global subscribers of the same key do not see targeted events.
func (b *Bus) EmitTo(target scene.EntityID, key string, payload any) {
	t := target
	b.enqueue(Envelope{Key: key, Target: &t, Payload: payload, Time: time.Now()})
}

// EmitToMany is a fan-out convenience over EmitTo.
func (b *Bus) EmitToMany(targets []scene.EntityID, key string, payload any) {
	for _, target := range targets {
		b.EmitTo(target, key, payload)
	}
}

// Pump drains the queue once, FIFO by emit order. For each event,
// subscribers run in registration order.
func (b *Bus) Pump() {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, env := range queue {
		for _, sub := range b.subscribersFor(env) {
			b.deliver(sub, env)
		}
	}
}

// Pending reports queued events awaiting the next pump.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Bus) enqueue(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, env)
}

func (b *Bus) subscribersFor(env Envelope) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	var subs []*subscription
	if env.Target != nil {
		subs = b.scoped[entityKey{entity: *env.Target, key: env.Key}]
	} else {
		subs = b.global[env.Key]
	}
	return append([]*subscription(nil), subs...)
}

func (b *Bus) deliver(sub *subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.lg.Error("event handler panicked",
				zap.String("key", env.Key),
				zap.Uint64("subscriber", uint64(sub.id)),
				zap.Any("panic", r))
		}
	}()
	if err := sub.handler(env); err != nil {
		b.lg.Error("event handler failed",
			zap.String("key", env.Key),
			zap.Uint64("subscriber", uint64(sub.id)),
			zap.Error(err))
	}
}

func (b *Bus) allocSub() SubscriberID {
	id := b.nextSub
	b.nextSub++
	return id
}

func (b *Bus) trackOwner(sub *subscription) {
	if sub.owner == scene.NoEntity {
		return
	}
	b.byOwner[sub.owner] = append(b.byOwner[sub.owner], sub.id)
}

func dropSub(subs []*subscription, id SubscriberID) []*subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Reserved event keys emitted by the engine itself.
const (
	KeySceneLoaded      = "scene:loaded"
	KeySceneUnloaded    = "scene:unloaded"
	KeyPhysicsCollision = "physics:collision"
	KeyPhysicsTrigger   = "physics:trigger"
	KeyAudioPlay        = "audio:play"
	KeyAudioStop        = "audio:stop"
	KeyEntitySpawned    = "entity:spawned"
	KeyEntityDestroyed  = "entity:destroyed"
	KeyComponentAdded   = "entity:componentAdded"
	KeyComponentRemoved = "entity:componentRemoved"
)
