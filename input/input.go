// Package input samples device state into frame-scoped snapshots and
// answers named action queries bound to scene input assets.
package input

import (
	"sync"

	"github.com/jonit-dev/vibe-coder-3d-sub003/scene"
)

// Snapshot is the immutable per-frame view scripts read. Edge queries
// compare against the previous frame's snapshot.
type Snapshot struct {
	keys        map[string]struct{}
	prevKeys    map[string]struct{}
	MousePos    [2]float64
	MouseDelta  [2]float64
	MouseWheel  float64
	PointerLock bool

	actions map[string][]string
}

func (s *Snapshot) IsKeyDown(key string) bool {
	_, down := s.keys[key]
	return down
}

func (s *Snapshot) IsKeyPressed(key string) bool {
	_, down := s.keys[key]
	_, was := s.prevKeys[key]
	return down && !was
}

func (s *Snapshot) IsKeyReleased(key string) bool {
	_, down := s.keys[key]
	_, was := s.prevKeys[key]
	return !down && was
}

// IsActionDown reports whether any binding of the named action is held.
func (s *Snapshot) IsActionDown(action string) bool {
	for _, key := range s.actions[action] {
		if s.IsKeyDown(key) {
			return true
		}
	}
	return false
}

func (s *Snapshot) IsActionPressed(action string) bool {
	for _, key := range s.actions[action] {
		if s.IsKeyPressed(key) {
			return true
		}
	}
	return false
}

func (s *Snapshot) IsActionReleased(action string) bool {
	released := false
	for _, key := range s.actions[action] {
		if s.IsKeyDown(key) {
			return false
		}
		if s.IsKeyReleased(key) {
			released = true
		}
	}
	return released
}

// Collector accumulates OS input events between frames. The host feeds
// it from its window loop; Sample cuts a snapshot at frame start.
type Collector struct {
	mu          sync.Mutex
	keys        map[string]struct{}
	mousePos    [2]float64
	mouseDelta  [2]float64
	mouseWheel  float64
	pointerLock bool

	prev    map[string]struct{}
	actions map[string][]string
}

func NewCollector() *Collector {
	return &Collector{
		keys:    map[string]struct{}{},
		prev:    map[string]struct{}{},
		actions: map[string][]string{},
	}
}

// BindActions installs the enabled action maps from scene input assets.
// Later maps override earlier ones action-by-action.
func (c *Collector) BindActions(assets []scene.InputAsset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = map[string][]string{}
	for _, asset := range assets {
		for _, m := range asset.ActionMaps {
			if !m.Enabled {
				continue
			}
			for _, a := range m.Actions {
				c.actions[a.Name] = append([]string(nil), a.Bindings...)
			}
		}
	}
}

func (c *Collector) KeyDown(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
}

func (c *Collector) KeyUp(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
}

func (c *Collector) MouseMove(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouseDelta[0] += x - c.mousePos[0]
	c.mouseDelta[1] += y - c.mousePos[1]
	c.mousePos = [2]float64{x, y}
}

func (c *Collector) MouseWheel(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouseWheel += delta
}

func (c *Collector) SetPointerLock(locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointerLock = locked
}

// Sample cuts the frame snapshot and resets per-frame accumulators.
func (c *Collector) Sample() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make(map[string]struct{}, len(c.keys))
	for k := range c.keys {
		keys[k] = struct{}{}
	}
	snap := &Snapshot{
		keys:        keys,
		prevKeys:    c.prev,
		MousePos:    c.mousePos,
		MouseDelta:  c.mouseDelta,
		MouseWheel:  c.mouseWheel,
		PointerLock: c.pointerLock,
		actions:     c.actions,
	}
	c.prev = keys
	c.mouseDelta = [2]float64{}
	c.mouseWheel = 0
	return snap
}
