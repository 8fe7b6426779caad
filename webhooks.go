package claimpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/config"
	redis_db "github.com/jerry-enebeli/claimpay/internal/redis-db"
	"github.com/jerry-enebeli/claimpay/model"
)

const (
	WebhookPaymentAuthorized = "payment.authorized"
	WebhookPaymentRejected   = "payment.rejected"
)

// NewWebhook is the body posted to the configured webhook URL.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Queue enqueues webhook deliveries on asynq.
type Queue struct {
	Client    *asynq.Client
	queueName string
}

// NewQueue connects an asynq client to the configured redis.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	queueName := conf.Queue.WebhookQueue
	if queueName == "" {
		queueName = config.DEFAULT_WEBHOOK_QUEUE
	}
	return &Queue{Client: asynq.NewClient(queueOptions), queueName: queueName}, nil
}

func (q *Queue) Close() error {
	return q.Client.Close()
}

// SendWebhook enqueues a delivery. It is a no-op when no webhook URL is configured.
func (q *Queue) SendWebhook(ctx context.Context, newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}
	task := asynq.NewTask(q.queueName, payload, asynq.Queue(q.queueName), asynq.MaxRetry(5))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.Errorf("failed to enqueue %s webhook: %v", newWebhook.Event, err)
		return err
	}
	logrus.Debugf("enqueued %s webhook as task %s", newWebhook.Event, info.ID)
	return nil
}

// notifyOutcome sends the webhook matching outcome. Delivery problems are logged and never
// change the outcome.
func (c *ClaimPay) notifyOutcome(ctx context.Context, outcome *model.Outcome) {
	if c.queue == nil {
		return
	}

	event := WebhookPaymentAuthorized
	if !outcome.Approved() {
		event = WebhookPaymentRejected
	}
	if err := c.queue.SendWebhook(context.WithoutCancel(ctx), NewWebhook{Event: event, Payload: outcome}); err != nil {
		logrus.WithField("authorization_id", outcome.AuthorizationID).Warnf("webhook not sent: %v", err)
	}
}

func processHTTP(ctx context.Context, data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.Notification.Webhook.Url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s rejected with status code %d", data.Event, resp.StatusCode)
	}

	logrus.Infof("webhook %s delivered", data.Event)
	return nil
}

// ProcessWebhook delivers one queued webhook. Errors make asynq retry the task.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("error unmarshaling webhook task payload: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return processHTTP(ctx, payload)
}
