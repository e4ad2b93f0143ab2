package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	txType      = reflect.TypeOf((*gorm.DB)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Handler holds metadata about a job handler.
type Handler struct {
	Fn         reflect.Value
	ArgsType   reflect.Type
	HasContext bool
	HasTx      bool

	performer core.Performer
}

// NewHandler creates a Handler from a core.Performer or a function.
// Function parameters, in order and each optional except that at least one
// is required: context.Context, *gorm.DB (the claim transaction), the
// payload type T. The function must return error.
func NewHandler(fn any) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)

	// Check for typed nil (e.g., var fn func() = nil)
	switch fnVal.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if fnVal.IsNil() {
			return nil, fmt.Errorf("handler function cannot be nil")
		}
	}

	if p, ok := fn.(core.Performer); ok {
		return &Handler{performer: p}, nil
	}

	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function or implement Performer")
	}

	handler := &Handler{Fn: fnVal}

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 3 {
		return nil, fmt.Errorf("handler must have 1-3 arguments")
	}

	idx := 0
	if fnType.In(idx).Implements(contextType) {
		handler.HasContext = true
		idx++
	}
	if idx < numIn && fnType.In(idx) == txType {
		handler.HasTx = true
		idx++
	}
	if idx < numIn {
		argsType := fnType.In(idx)
		if argsType == txType || argsType.Implements(contextType) {
			return nil, fmt.Errorf("handler arguments must be (context.Context, *gorm.DB, T)")
		}
		handler.ArgsType = argsType
		idx++
	}
	if idx != numIn {
		return nil, fmt.Errorf("handler arguments must be (context.Context, *gorm.DB, T)")
	}

	if fnType.NumOut() != 1 || !fnType.Out(0).Implements(errorType) {
		return nil, fmt.Errorf("handler must return error")
	}

	return handler, nil
}

// Execute runs the handler with the claim transaction and the raw payload.
func (h *Handler) Execute(ctx context.Context, tx *gorm.DB, payload []byte) error {
	if h.performer != nil {
		return h.performer.Perform(ctx, tx, json.RawMessage(payload))
	}

	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return fmt.Errorf("handler function is nil or invalid")
	}

	var args []reflect.Value

	if h.HasContext {
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}
	if h.HasTx {
		args = append(args, reflect.ValueOf(tx))
	}
	if h.ArgsType != nil {
		argVal := reflect.New(h.ArgsType)
		if err := json.Unmarshal(payload, argVal.Interface()); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		args = append(args, argVal.Elem())
	}

	results := h.Fn.Call(args)
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}
