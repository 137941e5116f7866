package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
	"google.golang.org/api/option"

	"github.com/billus/billus-server/internal/billing"
)

// BillNotifier pushes bill events to store devices over FCM. Delivery is
// best effort: a missing token or a send failure is logged and the task
// is not retried.
type BillNotifier struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewBillNotifier builds the FCM client from a service account file. An
// empty path disables delivery; notifications are then only logged.
func NewBillNotifier(ctx context.Context, credentialsPath string, logger *slog.Logger) (*BillNotifier, error) {
	if credentialsPath == "" {
		return &BillNotifier{logger: logger}, nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}
	return &BillNotifier{client: client, logger: logger}, nil
}

// Handle processes TaskTypeBillNotify tasks.
func (n *BillNotifier) Handle(ctx context.Context, t *asynq.Task) error {
	var payload billing.Notification
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if n.client == nil || payload.FCMToken == "" {
		n.logger.Info("bill notify skipped",
			slog.String("store_id", payload.StoreID.String()),
			slog.Bool("has_token", payload.FCMToken != ""))
		return nil
	}

	body := fmt.Sprintf("%s (%s) +%d guests", payload.MemberName, payload.CompanyName, payload.ExtraCount)
	if payload.ExtraCount == 0 {
		body = fmt.Sprintf("%s (%s)", payload.MemberName, payload.CompanyName)
	}
	msg := &messaging.Message{
		Token: payload.FCMToken,
		Notification: &messaging.Notification{
			Title: "New bill",
			Body:  body,
		},
		Data: map[string]string{
			"companyId":  payload.CompanyID.String(),
			"date":       payload.Date,
			"todayCount": strconv.FormatInt(payload.TodayCount, 10),
			"todayTotal": strconv.FormatInt(payload.TodayTotal, 10),
		},
	}
	if _, err := n.client.Send(ctx, msg); err != nil {
		n.logger.Warn("fcm send failed",
			slog.String("store_id", payload.StoreID.String()),
			slog.Any("error", err))
	}
	return nil
}
