package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

func TestDisabled(t *testing.T) {
	d := Disabled{Channel: "smtp"}
	require.ErrorIs(t, d.Send(context.Background(), Mail{}), resource.ErrUnavailable)
	require.ErrorIs(t, d.Publish(context.Background(), Message{}), resource.ErrUnavailable)
	require.NoError(t, d.Close())
}

func TestSMTPMailer_Message(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	require.Error(t, err)

	s, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.com"})
	require.NoError(t, err)

	_, err = s.message(Mail{Subject: "x"})
	require.Error(t, err)

	msg, err := s.message(Mail{To: []string{"a@example.com"}, Subject: "hola", Text: "t", HTML: "<b>t</b>"})
	require.NoError(t, err)
	require.Equal(t, []string{"noreply@example.com"}, msg.GetHeader("From"))
	require.Equal(t, []string{"hola"}, msg.GetHeader("Subject"))
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	s, err := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com"})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, Mail{To: []string{"b@example.com"}}), context.Canceled)
}

func TestKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{})
	require.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Publish(context.Background()))
	require.Error(t, p.Publish(context.Background(), Message{Value: []byte("x")}))

	km := toKafka(Message{Topic: "t", Key: "k", Value: []byte("v"), Headers: map[string]string{"tenant": "t1"}})
	require.Equal(t, "t", km.Topic)
	require.Equal(t, []byte("k"), km.Key)
	require.Len(t, km.Headers, 1)
}
