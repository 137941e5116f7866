// Package jobs defines background task types and the asynq worker that
// processes them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/billus/billus-server/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBillNotify is the task type for store push notifications.
	TaskTypeBillNotify = "bill:notify"
	// TaskTypeOTPEmail is the task type for one-time code delivery.
	TaskTypeOTPEmail = "otp:email"
)

// NewBillNotifyTask constructs an asynq task from a billing notification.
func NewBillNotifyTask(payload billing.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBillNotify, data), nil
}

// OTPEmailPayload carries one pending one-time code to the mailer.
type OTPEmailPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// NewOTPEmailTask constructs an asynq task for code delivery.
func NewOTPEmailTask(payload OTPEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOTPEmail, data), nil
}
