package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	ErrNotificationsDisabled = errors.New("notifications disabled")
	ErrIncompleteCredential  = errors.New("notification credential incomplete")
)

// Dispatcher sends best-effort notifications for signals. Nothing is retried.
type Dispatcher struct {
	sender    drepo.Sender
	publisher drepo.EventPublisher
	metrics   drepo.Metrics
	logger    *applogger.Logger
	enabled   bool
	loc       *time.Location
	now       func() time.Time
}

// DispatcherOption configures Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPublisher adds a message bus sink for new signals.
func WithPublisher(p drepo.EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithDispatchClock overrides the clock used for manual notifications.
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. loc is used to render times; nil means time.Local.
func NewDispatcher(sender drepo.Sender, enabled bool, loc *time.Location, metrics drepo.Metrics, l *applogger.Logger, opts ...DispatcherOption) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	d := &Dispatcher{
		sender:  sender,
		metrics: metrics,
		logger:  l,
		enabled: enabled,
		loc:     loc,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch notifies about one detected signal. It returns ErrNotificationsDisabled
// or ErrIncompleteCredential without calling Telegram when skipped.
//
// The Kafka sink is a separate channel gated only by its own presence
// (kafka.enabled): it receives the event whether or not Telegram is enabled.
func (d *Dispatcher) Dispatch(ctx context.Context, dataset models.Dataset, s models.Signal, cred models.Credential) error {
	if s.Dataset == "" {
		s.Dataset = dataset
	}
	d.publish(ctx, s)

	if !d.enabled {
		d.metrics.RecordNotification("telegram", "skipped")
		return ErrNotificationsDisabled
	}
	if !cred.Complete() {
		d.metrics.RecordNotification("telegram", "skipped")
		return ErrIncompleteCredential
	}
	return d.send(ctx, models.NotificationFromSignal(s), cred)
}

// DispatchAll dispatches signals in the given order. Failures are logged and counted, never returned.
func (d *Dispatcher) DispatchAll(ctx context.Context, dataset models.Dataset, signals []models.Signal, cred models.Credential) models.DispatchSummary {
	var sum models.DispatchSummary
	for _, s := range signals {
		err := d.Dispatch(ctx, dataset, s, cred)
		switch {
		case err == nil:
			sum.Sent++
		case errors.Is(err, ErrNotificationsDisabled), errors.Is(err, ErrIncompleteCredential):
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	return sum
}

// Deliver sends one manually requested notification.
func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification, cred models.Credential) error {
	if !cred.Complete() {
		return ErrIncompleteCredential
	}
	if n.Time.IsZero() {
		n.Time = d.now()
	}
	return d.send(ctx, n, cred)
}

func (d *Dispatcher) send(ctx context.Context, n models.Notification, cred models.Credential) error {
	start := time.Now()
	err := d.sender.Send(ctx, cred, d.FormatMessage(n))
	d.metrics.RecordLatency("notify_telegram", time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordNotification("telegram", "failed")
		d.logger.Warn("dispatcher: telegram send failed",
			applogger.String("table", string(n.Dataset)),
			applogger.String("decision", n.Decision.Label()),
			applogger.Error(err),
		)
		return fmt.Errorf("notify: %w", err)
	}
	d.metrics.RecordNotification("telegram", "sent")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, s models.Signal) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishSignal(ctx, s); err != nil {
		d.metrics.RecordNotification("kafka", "failed")
		d.logger.Warn("dispatcher: publish failed",
			applogger.String("table", string(s.Dataset)),
			applogger.String("id", s.ID),
			applogger.Error(err),
		)
		return
	}
	d.metrics.RecordNotification("kafka", "sent")
}

// FormatMessage renders n as a Telegram Markdown message.
func (d *Dispatcher) FormatMessage(n models.Notification) string {
	emoji, title := decisionHeadline(n.Decision)
	table := strings.ToUpper(string(n.Dataset))

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", emoji, title)
	fmt.Fprintf(&b, "📊 *Table:* %s\n", escapeMarkdown(table))
	fmt.Fprintf(&b, "💰 *Price:* %s\n", FormatPrice(n.Price))
	if msg := strings.TrimSpace(n.Message); msg != "" {
		fmt.Fprintf(&b, "💬 *Message:* %s\n", escapeMarkdown(msg))
	}
	fmt.Fprintf(&b, "💪 *Strength:* %s\n", FormatPercent(n.Strength))
	fmt.Fprintf(&b, "🤖 *ML Confidence:* %s\n", FormatPercent(n.MLConfidence))
	fmt.Fprintf(&b, "⏰ *Time:* %s\n\n", n.Time.In(d.loc).Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "#CryptoSignal #%s #%s", escapeMarkdown(table), strings.ReplaceAll(title, " ", ""))
	return b.String()
}

func decisionHeadline(dec models.Decision) (string, string) {
	switch dec {
	case models.DecisionBuy:
		return "🟢", "BUY SIGNAL"
	case models.DecisionSell:
		return "🔴", "SELL SIGNAL"
	case models.DecisionWait:
		return "🟡", "WAIT SIGNAL"
	default:
		return "⚪", "UNKNOWN SIGNAL"
	}
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatPrice renders p as $65,000.50.
func FormatPrice(p float64) string {
	fixed := decimal.NewFromFloat(p).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// FormatPercent renders a [0,1] ratio as a percentage with one decimal.
func FormatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
