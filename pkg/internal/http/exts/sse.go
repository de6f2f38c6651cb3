package exts

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const StreamHeartbeat = 15 * time.Second

// Latest returns a channel holding at most the newest pushed value.
// Pushing never blocks; an unread value is replaced.
func Latest[T any]() (<-chan T, func(T)) {
	ch := make(chan T, 1)
	return ch, func(v T) {
		for {
			select {
			case ch <- v:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Stream answers with server-sent events. subscribe runs before the response
// starts and its handle is called once the client goes away.
func Stream[T any](c *fiber.Ctx, event string, subscribe func(ctx context.Context, push func(T)) (func(), error)) error {
	ctx, cancel := context.WithCancel(context.Background())
	updates, push := Latest[T]()

	unsubscribe, err := subscribe(ctx, push)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set(fiber.HeaderTransferEncoding, "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		heartbeat := time.NewTicker(StreamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case value := <-updates:
				payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(value)
				if err != nil {
					log.Error().Err(err).Str("event", event).Msg("An error occurred when encoding stream event...")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
			}
			if err := w.Flush(); err != nil {
				log.Debug().Err(err).Str("event", event).Msg("Stream client went away.")
				return
			}
		}
	}))
	return nil
}
