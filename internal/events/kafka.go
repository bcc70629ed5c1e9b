package events

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter создает writer топика. Сообщения с одинаковым ключом (id отправителя) попадают в одну партицию,
// так порядок событий одного счета сохраняется.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond, //nolint:mnd
	}
}
