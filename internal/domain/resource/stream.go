package resource

import (
	"context"
	"sync"
)

// Stream es el handle cancelable que retorna Cursor. El productor corre en
// su propia goroutine y entrega entidades por Items(); cuando el canal se
// cierra, Err() indica si terminó por error. El transporte llama Close al
// desconectarse el cliente.
type Stream[E any] struct {
	items  chan *E
	cancel context.CancelFunc
	err    error
	once   sync.Once
}

// Producer recorre una fuente y llama emit por cada entidad. emit retorna
// error cuando el stream fue cancelado; el productor debe cortar ahí.
type Producer[E any] func(ctx context.Context, emit func(*E) error) error

// NewStream arranca el productor sobre un contexto derivado de ctx.
func NewStream[E any](ctx context.Context, produce Producer[E]) *Stream[E] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[E]{items: make(chan *E), cancel: cancel}
	go func() {
		defer cancel()
		err := produce(ctx, func(e *E) error {
			select {
			case s.items <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		s.err = err
		close(s.items)
	}()
	return s
}

// Items entrega las entidades en orden. Se cierra al terminar el productor.
func (s *Stream[E]) Items() <-chan *E { return s.items }

// Err es válido sólo después de que Items() se cerró.
func (s *Stream[E]) Err() error { return s.err }

// Close cancela el productor y espera a que libere el canal.
func (s *Stream[E]) Close() {
	s.once.Do(func() {
		s.cancel()
		for range s.items {
		}
	})
}

// Collect consume todo el stream; pensado para tests y lotes chicos.
func (s *Stream[E]) Collect() ([]*E, error) {
	var out []*E
	for e := range s.items {
		out = append(out, e)
	}
	return out, s.err
}
