package config

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer for the order/payment event topic, or nil
// when no brokers are configured so event publishing stays optional.
func NewKafkaWriter() *kafka.Writer {
	if AppConfig == nil || AppConfig.Kafka.Brokers == "" {
		return nil
	}

	brokers := strings.Split(AppConfig.Kafka.Brokers, ",")
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  AppConfig.Kafka.Topic,
		Balancer:               &kafka.LeastBytes{}, // Balancer for selecting partition
		AllowAutoTopicCreation: true,
	}
}
