package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer представляет Kafka producer
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
	now      func() time.Time
}

// NewProducer создает новый Kafka producer
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll       // Ждем подтверждения от всех реплик
	config.Producer.Retry.Max = 3                          // Максимум 3 попытки
	config.Producer.Return.Successes = true                // Возвращаем успешные результаты
	config.Producer.Compression = sarama.CompressionSnappy // Сжатие данных

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka producer created successfully")

	return NewProducerWith(producer, &cfg.Topics, log), nil
}

// NewProducerWith оборачивает готовый sync producer
func NewProducerWith(producer sarama.SyncProducer, topics *config.Topics, log *logger.Logger) *Producer {
	return &Producer{
		producer: producer,
		log:      log,
		topics:   topics,
		now:      time.Now,
	}
}

// Close закрывает producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

// PublishCourierAssigned публикует событие назначения курьера
func (p *Producer) PublishCourierAssigned(orderID, courierID string, distanceKm float64) error {
	now := p.now()
	event := models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeCourierAssigned,
		Timestamp: now,
		Data: models.CourierAssignedEvent{
			OrderID:    orderID,
			CourierID:  courierID,
			DistanceKm: distanceKm,
			Timestamp:  now,
		},
	}

	return p.publishEvent(p.topics.Couriers, courierID, event)
}

// PublishCourierReleased публикует событие освобождения курьера
func (p *Producer) PublishCourierReleased(courierID string) error {
	now := p.now()
	event := models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeCourierReleased,
		Timestamp: now,
		Data: models.CourierReleasedEvent{
			CourierID: courierID,
			Timestamp: now,
		},
	}

	return p.publishEvent(p.topics.Couriers, courierID, event)
}

// PublishLocationUpdated публикует событие обновления местоположения
func (p *Producer) PublishLocationUpdated(point models.TrackingPoint) error {
	event := models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeCourierLocationUpdated,
		Timestamp: p.now(),
		Data: models.CourierLocationUpdatedEvent{
			OrderID:   point.OrderID,
			CourierID: point.CourierID,
			Latitude:  point.Latitude,
			Longitude: point.Longitude,
			Status:    point.Status,
			Timestamp: point.Timestamp,
		},
	}

	// ключ по заказу сохраняет порядок точек одного трека в партиции
	return p.publishEvent(p.topics.Locations, point.OrderID, event)
}

// publishEvent публикует событие в указанный топик
func (p *Producer) publishEvent(topic, key string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if key == "" {
		key = event.ID.String()
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.Type),
			},
			{
				Key:   []byte("timestamp"),
				Value: []byte(event.Timestamp.Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}

	p.log.WithField("topic", topic).
		WithField("partition", partition).
		WithField("offset", offset).
		WithField("event_type", event.Type).
		WithField("event_id", event.ID).
		Debug("Event published successfully")

	return nil
}
