// Package notify entrega los mensajes de touch: emails por SMTP y pushes
// por Kafka. Los providers dependen de las interfaces, no de los clientes.
package notify

import (
	"context"
	"fmt"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

// Mail es un email listo para enviar.
type Mail struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer envía emails.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Message es un mensaje para el broker.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publisher publica mensajes en el broker.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}

// Disabled cumple Mailer y Publisher cuando el canal no está configurado:
// los envíos fallan con ErrUnavailable y la entidad queda "failed".
type Disabled struct{ Channel string }

func (d Disabled) Send(context.Context, Mail) error {
	return fmt.Errorf("%w: %s is not configured", resource.ErrUnavailable, d.Channel)
}

func (d Disabled) Publish(context.Context, ...Message) error {
	return fmt.Errorf("%w: %s is not configured", resource.ErrUnavailable, d.Channel)
}

func (Disabled) Close() error { return nil }
