package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/turnmesh/core"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
//
// Callbacks observe a turn without taking part in it. The engine waits for
// them in registration order, but never past the turn deadline, and an error
// they return is logged, never turned into a failed turn.
//
// Available callback types:
//   - BeforeTurn/AfterTurn: around the complete turn
//   - AfterAnnotation: once the annotation graph is resolved
//   - OnSelected: when a candidate passes the safety check
//   - OnRejected: when the safety checker rejects a candidate
type CallbackType string

const (
	// CallbackBeforeTurn is triggered before the annotation phase starts.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterAnnotation is triggered once every annotator has an outcome.
	CallbackAfterAnnotation CallbackType = "after_annotation"

	// CallbackOnSelected is triggered when a response or prompt is selected.
	CallbackOnSelected CallbackType = "on_selected"

	// CallbackOnRejected is triggered when a candidate is rejected as unsafe.
	CallbackOnRejected CallbackType = "on_rejected"

	// CallbackAfterTurn is triggered with the final result, including fatal ones.
	CallbackAfterTurn CallbackType = "after_turn"
)

// CallbackContext carries what a callback may inspect. Fields that do not
// apply to a callback type are nil or empty.
type CallbackContext struct {
	Type      CallbackType
	Turn      *core.Turn
	Phase     string
	Candidate *core.Candidate
	Result    *TurnResult
}

// Callback is a turn lifecycle hook.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback of the given type backed by fn.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds callbacks by type.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// RegisterCallback adds a callback. Callbacks of one type run in
// registration order.
func (cm *CallbackManager) RegisterCallback(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Has reports whether any callback of type t is registered.
func (cm *CallbackManager) Has(t CallbackType) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[t]) > 0
}

// ExecuteCallbacks runs every callback of cbCtx.Type. A panicking callback
// is reported as an error. All callbacks run; their errors are joined.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, cbCtx *CallbackContext) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[cbCtx.Type]...)
	cm.mu.RUnlock()

	var errs []error
	for _, cb := range callbacks {
		if err := execute(ctx, cb, cbCtx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func execute(ctx context.Context, cb Callback, cbCtx *CallbackContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s callback panicked: %v", cbCtx.Type, r)
		}
	}()
	return cb.Execute(ctx, cbCtx)
}

// LoggingCallback reports lifecycle points through a plain function.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	turnID := ""
	if cbCtx.Turn != nil {
		turnID = cbCtx.Turn.ID
	}

	producer := ""
	if cbCtx.Candidate != nil {
		producer = cbCtx.Candidate.Producer
	}

	c.logger(fmt.Sprintf("[%s] turn=%s phase=%s producer=%s", c.callbackType, turnID, cbCtx.Phase, producer))

	return nil
}
