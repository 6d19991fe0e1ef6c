// Package cadview embeds a visualization server in a host process. It pushes
// 3D geometry produced by the host to a browser viewer and relays the
// browser's shape clicks back to the host, in real time.
//
// An App runs two servers side by side:
//
//   - the gateway, an HTTP server for the viewer page, static assets and
//     geometry ingestion (POST /d-shape);
//   - the bridge, a WebSocket server that keeps one session per browser tab.
//
// # Quick Start
//
// Configuration comes from package github.com/vango-dev/cadview/pkg/config,
// either config.Default() or config.Load(path).
//
//	app, err := cadview.New(config.Default(), logger)
//	if err != nil {
//	    return err
//	}
//	app.OnShapeClicked(func(ctx context.Context, frame json.RawMessage) (any, error) {
//	    return map[string]string{"status": "selected"}, nil
//	})
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return app.Run(ctx)
//
// Geometry reaches the browser either over HTTP, from any process:
//
//	curl -X POST --data-binary @shape.json http://localhost:8080/d-shape
//
// or in process with LoadGeometry. Shapes are retained, so a browser that
// connects later still receives them.
//
// Errors are classified; test them with errors.Is against ErrParse and the
// other Err values of this package.
package cadview

import "github.com/vango-dev/cadview/internal/errors"

// Error classes returned by App and the configuration loader.
var (
	ErrParse            = errors.ErrParse
	ErrNotFound         = errors.ErrNotFound
	ErrUnknownEvent     = errors.ErrUnknownEvent
	ErrInvalidReference = errors.ErrInvalidReference
	ErrIO               = errors.ErrIO
	ErrTimeout          = errors.ErrTimeout
)
