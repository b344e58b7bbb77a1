// Package sse escribe un resource.Stream como Server-Sent Events.
//
// Por cada entidad se escribe un mensaje con id y data JSON. Al final se
// escribe exactamente un mensaje terminal: "error" con {code, message} si
// el stream falló, o "close" si terminó bien. Si el cliente se desconecta
// se cancela el stream y no se escribe nada más.
package sse

import (
	"encoding/json"
	"net/http"

	ginsse "github.com/gin-contrib/sse"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/metrics"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

const (
	EventError = "error"
	EventClose = "close"
)

// Options ajusta qué se escribe por cada entidad.
type Options[E any] struct {
	// Keep descarta entidades que el caller no puede ver (filtro de owner).
	Keep func(*E) bool
	// Shape transforma la entidad antes de serializarla.
	Shape func(*E) any
}

// Pipe consume stream y lo escribe en w hasta el mensaje terminal o la
// desconexión del cliente. Siempre cierra el stream.
func Pipe[E any](w http.ResponseWriter, r *http.Request, stream *resource.Stream[E], opts Options[E]) {
	defer stream.Close()
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("sse"))

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	var sent int64
	for {
		select {
		case <-ctx.Done():
			log.Debug("client disconnected", logger.Count(sent))
			return
		case item, ok := <-stream.Items():
			if !ok {
				// un cierre por desconexión no lleva mensaje terminal
				if ctx.Err() != nil {
					return
				}
				if err := stream.Err(); err != nil {
					writeError(w, err)
					log.Warn("cursor failed", logger.Count(sent), logger.Err(err))
				} else {
					writeClose(w, sent)
				}
				flush()
				return
			}
			if item == nil || (opts.Keep != nil && !opts.Keep(item)) {
				continue
			}
			if err := writeItem(w, item, opts.Shape); err != nil {
				// el cliente se fue a mitad de escritura
				log.Debug("write failed", logger.Err(err))
				return
			}
			sent++
			flush()
		}
	}
}

func writeItem[E any](w http.ResponseWriter, item *E, shape func(*E) any) error {
	var v any = item
	if shape != nil {
		v = shape(item)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ev := ginsse.Event{Data: string(raw)}
	if c := resource.CoreOf(item); c != nil {
		ev.Id = c.ID
	}
	metrics.StreamMessages.WithLabelValues("message").Inc()
	return ginsse.Encode(w, ev)
}

func writeError(w http.ResponseWriter, err error) {
	raw, _ := json.Marshal(httperrors.FromError(err).Payload())
	metrics.StreamMessages.WithLabelValues(EventError).Inc()
	_ = ginsse.Encode(w, ginsse.Event{Event: EventError, Data: string(raw)})
}

func writeClose(w http.ResponseWriter, sent int64) {
	raw, _ := json.Marshal(map[string]int64{"count": sent})
	metrics.StreamMessages.WithLabelValues(EventClose).Inc()
	_ = ginsse.Encode(w, ginsse.Event{Event: EventClose, Data: string(raw)})
}
