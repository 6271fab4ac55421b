package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/realtime"
)

// heartbeatInterval keeps idle SSE connections from being reaped by proxies.
const heartbeatInterval = 30 * time.Second

var feedTables = map[string]bool{
	realtime.TableComments:    true,
	realtime.TableAttachments: true,
}

type feedApi struct {
	feed realtime.Feed
}

func registerFeedAPI(g *echo.Group, jwt echo.MiddlewareFunc, feed realtime.Feed) {
	api := feedApi{feed: feed}

	fg := g.Group("/feed", jwt)
	fg.GET("/:table/:scope", api.stream)
}

// stream serves a Server-Sent Events stream of row changes for one
// (table, scope) pair. Clients reconcile events last-event-wins and re-fetch
// when they need the joined view.
func (api *feedApi) stream(ctx echo.Context) error {
	table := ctx.Param("table")
	if !feedTables[table] {
		return errHttpNotFound
	}

	res := ctx.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return errors.New("streaming unsupported by response writer")
	}

	events, cancel, err := api.feed.Subscribe(ctx.Request().Context(), table, ctx.Param("scope"))
	if err != nil {
		return errors.Wrap(err, "subscribing to feed")
	}
	defer cancel()

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-heartbeat.C:
			if _, err = fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err = fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
