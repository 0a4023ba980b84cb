package databus

import (
	"context"
	"strings"

	"gopkg.in/Shopify/sarama.v1"
	"moff.io/moff-connect/pkg/errors"
	"moff.io/moff-connect/pkg/log"
)

// DataBus publishes events to kafka.
type DataBus struct {
	producer sarama.SyncProducer
}

// NewKafka creates a synchronous producer for the comma separated broker list.
func NewKafka(host string) (*DataBus, error) {
	hosts := strings.Split(host, ",")
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	p, err := sarama.NewSyncProducer(hosts, conf)
	if err != nil {
		return nil, errors.WrapfAndReport(err, "create kafka producer for %s", host)
	}
	log.Info("Kafka producer initialized...")
	return NewDataBus(p), nil
}

func NewDataBus(producer sarama.SyncProducer) *DataBus {
	return &DataBus{producer: producer}
}

// PublishRaw sends raw to topic; empty payloads are skipped.
func (db *DataBus) PublishRaw(topic, key string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(raw),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := db.producer.SendMessage(msg)
	if err != nil {
		return errors.WrapAndReport(err, "produce message")
	}
	log.Debugf("produce message to %s partition: %d, offset: %d", topic, partition, offset)
	return nil
}

// Keyed events are partitioned by their key.
type Keyed interface {
	Key() string
}

func (db *DataBus) Publish(_ context.Context, e Event) error {
	var key string
	if k, ok := e.(Keyed); ok {
		key = k.Key()
	}
	return db.PublishRaw(e.Topic(), key, e.Serialize())
}

func (db *DataBus) Close() error {
	return errors.Wrap(db.producer.Close(), "close kafka producer")
}
