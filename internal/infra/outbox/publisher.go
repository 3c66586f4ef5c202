package outbox

import (
	"context"
	"log/slog"
	"time"

	"templateshop/internal/domain/model"
	repo "templateshop/internal/repository"

	"github.com/segmentio/kafka-go"
)

// *kafka.Writer を満たす最小の口（テストで差し替える）
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同じ注文は同じパーティション
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Poller は未送信のoutboxをKafkaへ流す。
// recoveryTickごとに「決済成功なのに注文が無いintent」を警告ログに出す
type Poller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	batchSize    int

	outbox  repo.OutboxRepository
	intents repo.PaymentIntentRepository
	writer  MessageWriter
	log     *slog.Logger
}

func NewPoller(outbox repo.OutboxRepository, intents repo.PaymentIntentRepository, writer MessageWriter, eventTick time.Duration, batchSize int, log *slog.Logger) *Poller {
	if eventTick <= 0 {
		eventTick = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Poller{
		eventTick:    eventTick,
		recoveryTick: time.Minute,
		batchSize:    batchSize,
		outbox:       outbox,
		intents:      intents,
		writer:       writer,
		log:          log.With("component", "outbox_poller"),
	}
}

func (p *Poller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.PublishPending(ctx)
		case <-recoveryTicker.C:
			p.reportUnreconciled(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) Close() error {
	return p.writer.Close()
}

// PublishPending は1バッチ分送って送信済みにする。送れた件数を返す
func (p *Poller) PublishPending(ctx context.Context) int {
	events, err := p.outbox.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", "err", err)
		return 0
	}

	sent := 0
	for _, ev := range events {
		if err := p.writer.WriteMessages(ctx, toMessage(ev)); err != nil {
			// 順序を保つため、このバッチはここで止める
			p.log.Warn("failed to publish outbox event", "event_id", ev.ID, "err", err)
			return sent
		}
		if err := p.outbox.MarkPublished(ctx, ev.ID); err != nil {
			p.log.Error("failed to mark outbox event", "event_id", ev.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

func (p *Poller) reportUnreconciled(ctx context.Context) {
	if p.intents == nil {
		return
	}
	list, err := p.intents.ListUnreconciled(ctx, 50)
	if err != nil {
		p.log.Error("failed to list unreconciled intents", "err", err)
		return
	}
	for _, pi := range list {
		p.log.Warn("payment succeeded without order",
			"intent_id", pi.IntentID,
			"user_id", pi.UserID,
			"amount_minor_units", pi.AmountMinorUnits,
			"currency", pi.Currency,
		)
	}
}

func toMessage(ev model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: []byte(ev.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
}

// Kafka未設定時。outboxは貯まるだけ
type DiscardWriter struct{}

func (DiscardWriter) WriteMessages(context.Context, ...kafka.Message) error { return nil }
func (DiscardWriter) Close() error                                          { return nil }
