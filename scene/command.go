package scene

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Command is one deferred scene mutation. Commands are enqueued by
// scripts, editor diffs, and engine subsystems, and applied by the
// frame loop in enqueue order.
type Command interface {
	isCommand()
}

// ComponentInit carries an initial component for CreateEntity.
type ComponentInit struct {
	Kind string
	Data json.RawMessage
}

type CreateEntity struct {
	PersistentID string
	Name         string
	Parent       EntityID
	Tags         []string
	Components   []ComponentInit
}

type DestroyEntity struct {
	Entity EntityID
}

type SetComponent struct {
	Entity EntityID
	Kind   string
	Data   json.RawMessage
}

type RemoveComponent struct {
	Entity EntityID
	Kind   string
}

type SetParent struct {
	Entity EntityID
	Parent EntityID
}

type SetActive struct {
	Entity EntityID
	Active bool
}

func (CreateEntity) isCommand()    {}
func (DestroyEntity) isCommand()   {}
func (SetComponent) isCommand()    {}
func (RemoveComponent) isCommand() {}
func (SetParent) isCommand()       {}
func (SetActive) isCommand()       {}

// CommandBuffer is a multi-producer, single-consumer queue. Producers
// enqueue concurrently; the frame loop drains once per frame.
type CommandBuffer struct {
	mu   sync.Mutex
	cmds []Command
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

func (b *CommandBuffer) Enqueue(cmds ...Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmds = append(b.cmds, cmds...)
}

// Drain returns all pending commands in enqueue order and empties the
// buffer.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.cmds
	b.cmds = nil
	return out
}

func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cmds)
}

// CommandError reports a command that was skipped: dangling entity,
// cycle, or unknown component kind. The batch continues.
type CommandError struct {
	Command Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("applying %T: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
