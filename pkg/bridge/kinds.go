package bridge

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/vango-dev/cadview/pkg/scene"
)

// Built-in kind names.
const (
	// KindLoadShape carries geometry from the host to the browser.
	KindLoadShape = "ThreeLoadShape"

	// KindShapeClick carries a clicked shape from the browser to the host.
	KindShapeClick = "ThreeShapeClick"
)

// LoadShape returns the geometry load kind. When store is non-nil, every new
// connection is sent the retained shapes, oldest first.
func LoadShape(store *scene.Store) Kind {
	return Kind{
		Name: KindLoadShape,
		New: func(out Outbox) EventChannel {
			return &loadShapeChannel{
				BaseChannel: BaseChannel{EID: KindLoadShape, Out: out},
				store:       store,
			}
		},
	}
}

type loadShapeChannel struct {
	BaseChannel
	store *scene.Store
}

// Open replays the retained scene.
func (c *loadShapeChannel) Open(context.Context) error {
	if c.store == nil {
		return nil
	}
	for _, shape := range c.store.Snapshot() {
		if err := c.Send(shape); err != nil {
			return err
		}
	}
	return nil
}

// ClickHandler receives a shape click frame and optionally returns a JSON
// serializable reply for the browser.
type ClickHandler func(ctx context.Context, frame json.RawMessage) (any, error)

// ShapeClick returns the shape click kind. Clicks are accepted and ignored
// while handler is nil or holds no function.
func ShapeClick(handler *ClickHandlerRef) Kind {
	return Kind{
		Name: KindShapeClick,
		New: func(out Outbox) EventChannel {
			return &shapeClickChannel{
				BaseChannel: BaseChannel{EID: KindShapeClick, Out: out},
				handler:     handler,
			}
		},
	}
}

type shapeClickChannel struct {
	BaseChannel
	handler *ClickHandlerRef
}

func (c *shapeClickChannel) Receive(ctx context.Context, frame json.RawMessage) (any, error) {
	fn := c.handler.Load()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, frame)
}

// ClickHandlerRef holds a ClickHandler that can be replaced while the bridge
// is serving. The zero value holds no handler.
type ClickHandlerRef struct {
	fn atomic.Pointer[ClickHandler]
}

// Store replaces the handler. A nil fn removes it.
func (r *ClickHandlerRef) Store(fn ClickHandler) {
	if fn == nil {
		r.fn.Store(nil)
		return
	}
	r.fn.Store(&fn)
}

// Load returns the current handler or nil.
func (r *ClickHandlerRef) Load() ClickHandler {
	if r == nil {
		return nil
	}
	if p := r.fn.Load(); p != nil {
		return *p
	}
	return nil
}
