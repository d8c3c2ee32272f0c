package notification

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/event"
	"github.com/ustabul/ustabul/internal/messaging"
	"github.com/ustabul/ustabul/internal/worker"
)

var workerTracer = otel.Tracer("github.com/ustabul/ustabul/worker/notification")

// Module registers the notification worker handler.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewNotificationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewNotificationHandler sets up a worker handler that dispatches lifecycle
// notifications to interested users.
func NewNotificationHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notifications.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var n event.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			logger.Error("failed to decode notification", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("notification dispatched",
			zap.String("type", string(n.Type)),
			zap.Int64("order_id", n.OrderID),
			zap.Int64("user_id", n.UserID),
			zap.String("role", n.Role),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
