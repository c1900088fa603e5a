package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// MessageWriter é o subconjunto do *kafka.Writer usado pelo publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher encapsula o writer Kafka e o logger.
type KafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher para o tópico de preços.
// Em ambiente local/dev garante a existência do tópico antes de criar o writer.
func NewKafkaPublisher(brokers []string, topic, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env == "local" || env == "dev" {
		if err := ensureTopic(brokers[0], topic, log); err != nil {
			log.Warn("failed to ensure kafka topic", zap.String("topic", topic), zap.Error(err))
		}
	}

	// Hash pela fonte: atualizações de um mesmo par ficam ordenadas na mesma partição
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return NewWithWriter(writer, log), nil
}

// NewWithWriter monta o publisher sobre um writer já configurado
func NewWithWriter(w MessageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

// ensureTopic cria o tópico via controller do cluster (single-broker: 1 partição, RF 1)
func ensureTopic(broker, topic string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	if err == nil {
		log.Info("kafka topic created", zap.String("topic", topic))
	}
	return nil
}

// Publish serializa a atualização em JSON; a chave é a fonte do preço
func (p *KafkaPublisher) Publish(ctx context.Context, u events.PriceUpdate) error {
	value, err := json.Marshal(u)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(u.Source),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish price update", zap.String("source", u.Source), zap.Error(err))
		return err
	}

	p.log.Debug("published price update", zap.String("source", u.Source), zap.Int("version", u.Version))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
