package touch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/notify"
)

// claves que sólo cambia send
var deliveryKeys = []string{"status", "claimed_at", "sent_at", "error", "attempts"}

func checkDeliveryPatch(patch resource.Patch) error {
	for _, k := range deliveryKeys {
		if _, ok := patch[k]; ok {
			return fmt.Errorf("%w: field %q is read-only", resource.ErrInvalidInput, k)
		}
	}
	return nil
}

// ─── emails ───

// Emails agrega send a la colección genérica.
type Emails struct {
	*resource.Collection[Email]

	mailer notify.Mailer
	from   string
	stale  time.Duration
	now    func() time.Time
}

func (e *Emails) Create(ctx context.Context, meta resource.Metadata, item *Email) (*Email, error) {
	if item != nil {
		item.Delivery = Delivery{Status: StatusDraft}
	}
	return e.Collection.Create(ctx, meta, item)
}

func (e *Emails) CreateBulk(ctx context.Context, meta resource.Metadata, items []*Email) ([]*Email, error) {
	for _, item := range items {
		if item != nil {
			item.Delivery = Delivery{Status: StatusDraft}
		}
	}
	return e.Collection.CreateBulk(ctx, meta, items)
}

func (e *Emails) UpdateOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne, patch resource.Patch) (*Email, error) {
	if err := checkDeliveryPatch(patch); err != nil {
		return nil, err
	}
	return e.Collection.UpdateOne(ctx, meta, f, patch)
}

func (e *Emails) UpdateBulk(ctx context.Context, meta resource.Metadata, f resource.QueryFilter, patch resource.Patch) (int64, error) {
	if err := checkDeliveryPatch(patch); err != nil {
		return 0, err
	}
	return e.Collection.UpdateBulk(ctx, meta, f, patch)
}

// Send entrega el email por SMTP. Un fallo del servidor SMTP deja el email
// en failed con el error; se puede reintentar. Un email que quedó en sending
// se puede reintentar pasado StaleAfter.
func (e *Emails) Send(ctx context.Context, meta resource.Metadata, q resource.Query) (*Email, error) {
	return deliver(ctx, e.Collection, meta, q,
		func(m *Email) *Delivery { return &m.Delivery },
		func(ctx context.Context, m *Email) error {
			from := m.From
			if from == "" {
				from = e.from
			}
			return e.mailer.Send(ctx, notify.Mail{
				From: from, To: m.To, Cc: m.Cc, Subject: m.Subject, Text: m.Text, HTML: m.HTML,
			})
		}, e.now, e.stale)
}

// ─── pushes ───

// Pushes agrega send a la colección genérica.
type Pushes struct {
	*resource.Collection[Push]

	publisher notify.Publisher
	topic     string
	stale     time.Duration
	now       func() time.Time
}

func (p *Pushes) Create(ctx context.Context, meta resource.Metadata, item *Push) (*Push, error) {
	if item != nil {
		item.Delivery = Delivery{Status: StatusDraft}
	}
	return p.Collection.Create(ctx, meta, item)
}

func (p *Pushes) CreateBulk(ctx context.Context, meta resource.Metadata, items []*Push) ([]*Push, error) {
	for _, item := range items {
		if item != nil {
			item.Delivery = Delivery{Status: StatusDraft}
		}
	}
	return p.Collection.CreateBulk(ctx, meta, items)
}

func (p *Pushes) UpdateOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne, patch resource.Patch) (*Push, error) {
	if err := checkDeliveryPatch(patch); err != nil {
		return nil, err
	}
	return p.Collection.UpdateOne(ctx, meta, f, patch)
}

func (p *Pushes) UpdateBulk(ctx context.Context, meta resource.Metadata, f resource.QueryFilter, patch resource.Patch) (int64, error) {
	if err := checkDeliveryPatch(patch); err != nil {
		return 0, err
	}
	return p.Collection.UpdateBulk(ctx, meta, f, patch)
}

// pushEvent es el valor publicado en el broker.
type pushEvent struct {
	ID        string            `json:"id"`
	Tenant    string            `json:"tenant"`
	Recipient string            `json:"recipient"`
	Title     string            `json:"title"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Send publica el push en su topic (o el default). La clave del mensaje es
// el destinatario para conservar el orden por destinatario.
func (p *Pushes) Send(ctx context.Context, meta resource.Metadata, q resource.Query) (*Push, error) {
	return deliver(ctx, p.Collection, meta, q,
		func(m *Push) *Delivery { return &m.Delivery },
		func(ctx context.Context, m *Push) error {
			value, err := json.Marshal(pushEvent{
				ID: m.ID, Tenant: meta.Tenant, Recipient: m.Recipient,
				Title: m.Title, Body: m.Body, Data: m.Data,
			})
			if err != nil {
				return err
			}
			topic := m.Topic
			if topic == "" {
				topic = p.topic
			}
			return p.publisher.Publish(ctx, notify.Message{
				Topic: topic,
				Key:   m.Recipient,
				Value: value,
				Headers: map[string]string{
					"tenant":  meta.Tenant,
					"push-id": m.ID,
				},
			})
		}, p.now, p.stale)
}
