package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/iamCapel/mopc-reportes/internal/models"
)

// Notifier is the best-effort notification collaborator. Callers log its
// errors and never propagate them.
type Notifier interface {
	SendWelcome(ctx context.Context, msg models.WelcomeMessage) error
	ReportCompleted(ctx context.Context, report *models.Report) error
}

// Event types published on the notifications topic.
const (
	EventUsuarioBienvenida = "event.usuario.bienvenida"
	EventReporteCompletado = "event.reporte.completado"
)

// KafkaNotifier publishes notifications to a Kafka topic. The mail and push
// workers that deliver them consume that topic.
type KafkaNotifier struct {
	writer           *kafka.Writer
	bootstrapServers string
	topic            string
}

// NewKafkaNotifier crea el productor de notificaciones.
func NewKafkaNotifier(bootstrapServers, topic string) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(bootstrapServers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	return &KafkaNotifier{
		writer:           writer,
		bootstrapServers: bootstrapServers,
		topic:            topic,
	}
}

func (kn *KafkaNotifier) SendWelcome(ctx context.Context, msg models.WelcomeMessage) error {
	return kn.publishEvent(ctx, EventUsuarioBienvenida, msg.Username, msg)
}

func (kn *KafkaNotifier) ReportCompleted(ctx context.Context, report *models.Report) error {
	return kn.publishEvent(ctx, EventReporteCompletado, report.ID, report)
}

func (kn *KafkaNotifier) publishEvent(ctx context.Context, eventType, key string, event any) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error serializando evento %s: %w", eventType, err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}

	if err := kn.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("error publicando evento %s: %w", eventType, err)
	}

	zap.S().Debugf("kafka: evento publicado type=%s topic=%s key=%s", eventType, kn.topic, key)
	return nil
}

// Ping dials the first broker and checks the topic exists.
func (kn *KafkaNotifier) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", kn.bootstrapServers)
	if err != nil {
		return fmt.Errorf("no se pudo conectar a Kafka: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(kn.topic); err != nil {
		return fmt.Errorf("no se pudieron leer las particiones de %s: %w", kn.topic, err)
	}
	return nil
}

func (kn *KafkaNotifier) Close() error {
	if err := kn.writer.Close(); err != nil {
		return fmt.Errorf("error cerrando productor Kafka: %w", err)
	}
	return nil
}

// LogNotifier only logs. It stands in when Kafka is disabled.
type LogNotifier struct{}

func (LogNotifier) SendWelcome(_ context.Context, msg models.WelcomeMessage) error {
	zap.S().Infow("bienvenida pendiente de envío", "to", msg.To, "username", msg.Username, "role", msg.Role)
	return nil
}

func (LogNotifier) ReportCompleted(_ context.Context, report *models.Report) error {
	zap.S().Infow("reporte completado", "id", report.ID, "numeroReporte", report.NumeroReporte)
	return nil
}
