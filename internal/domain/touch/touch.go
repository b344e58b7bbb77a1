// Package touch: emails y pushes. Las entidades se guardan como cualquier
// otra y se entregan con la acción send.
package touch

import (
	"context"
	"fmt"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/notify"
	"github.com/wenex-org/platform-sub000/internal/store"
)

const (
	Context = "touch"

	EmailsCollection = "touch_emails"
	PushesCollection = "touch_pushes"

	DefaultPushTopic = "touch.pushes"

	// DefaultStaleAfter: un envío en sending más viejo que esto se puede
	// volver a reclamar (el proceso murió o falló el settle).
	DefaultStaleAfter = 5 * time.Minute
)

// Estados de entrega.
const (
	StatusDraft   = "draft"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Delivery es el estado de entrega común a emails y pushes.
type Delivery struct {
	Status    string     `json:"status,omitempty" validate:"omitempty,oneof=draft sending sent failed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	Attempts  int        `json:"attempts,omitempty"`
}

// Email es un email guardado.
type Email struct {
	resource.Core
	Delivery

	From    string   `json:"from,omitempty" validate:"omitempty,email"`
	To      []string `json:"to" validate:"required,min=1,max=50,dive,email"`
	Cc      []string `json:"cc,omitempty" validate:"omitempty,max=50,dive,email"`
	Subject string   `json:"subject" validate:"required,max=255"`
	Text    string   `json:"text,omitempty" validate:"required_without=HTML"`
	HTML    string   `json:"html,omitempty"`
}

// Push es una notificación push que se publica en el broker.
type Push struct {
	resource.Core
	Delivery

	Recipient string            `json:"recipient" validate:"required,max=128"`
	Title     string            `json:"title" validate:"required,max=128"`
	Body      string            `json:"body,omitempty" validate:"omitempty,max=4096"`
	Data      map[string]string `json:"data,omitempty"`
	Topic     string            `json:"topic,omitempty" validate:"omitempty,max=249"`
}

// Provider del contexto touch.
type Provider struct {
	Emails *Emails
	Pushes *Pushes
}

// Options configura los canales de entrega.
type Options struct {
	Mailer    notify.Mailer
	Publisher notify.Publisher
	From      string
	PushTopic string
	// StaleAfter habilita reclamar un sending abandonado; 0 usa
	// DefaultStaleAfter.
	StaleAfter time.Duration
}

// NewProvider crea el provider sobre b. Un canal nil queda deshabilitado.
func NewProvider(b store.Backend, o Options, opts ...resource.CollectionOption) *Provider {
	if o.Mailer == nil {
		o.Mailer = notify.Disabled{Channel: "smtp"}
	}
	if o.Publisher == nil {
		o.Publisher = notify.Disabled{Channel: "kafka"}
	}
	if o.PushTopic == "" {
		o.PushTopic = DefaultPushTopic
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	return &Provider{
		Emails: &Emails{
			Collection: resource.NewCollection[Email](EmailsCollection, b.Collection(EmailsCollection), opts...),
			mailer:     o.Mailer,
			from:       o.From,
			stale:      o.StaleAfter,
			now:        time.Now,
		},
		Pushes: &Pushes{
			Collection: resource.NewCollection[Push](PushesCollection, b.Collection(PushesCollection), opts...),
			publisher:  o.Publisher,
			topic:      o.PushTopic,
			stale:      o.StaleAfter,
			now:        time.Now,
		},
	}
}

// ─── entrega ───

// claim pasa la entidad a sending. Una entidad enviada no se vuelve a
// entregar; una en sending sólo si el claim tiene más de stale.
func claim(d *Delivery, now time.Time, stale time.Duration) error {
	switch d.Status {
	case StatusSent:
		return fmt.Errorf("%w: delivery is %s", resource.ErrWrongState, d.Status)
	case StatusSending:
		if d.ClaimedAt != nil && now.Sub(*d.ClaimedAt) < stale {
			return fmt.Errorf("%w: delivery is %s", resource.ErrWrongState, d.Status)
		}
	}
	d.Status = StatusSending
	d.ClaimedAt = &now
	d.Attempts++
	return nil
}

// settle registra el resultado del envío.
func settle(d *Delivery, now time.Time, sendErr error) {
	if sendErr != nil {
		d.Status = StatusFailed
		d.Error = sendErr.Error()
		d.SentAt = nil
		return
	}
	d.Status = StatusSent
	d.Error = ""
	d.SentAt = &now
}

// deliver corre claim, send y settle sobre una colección. El fallo de envío
// queda en la entidad; sólo los errores de almacenamiento se retornan.
func deliver[E any](ctx context.Context, c *resource.Collection[E], meta resource.Metadata, q resource.Query,
	delivery func(*E) *Delivery, send func(context.Context, *E) error, now func() time.Time, stale time.Duration,
) (*E, error) {
	claimed, err := c.Modify(ctx, meta, q, func(e *E) error { return claim(delivery(e), now().UTC(), stale) })
	if err != nil {
		return nil, err
	}
	sendErr := send(ctx, claimed)
	id := resource.CoreOf(claimed).ID
	return c.Modify(context.WithoutCancel(ctx), meta, resource.Query{resource.KeyID: id}, func(e *E) error {
		settle(delivery(e), now().UTC(), sendErr)
		return nil
	})
}
