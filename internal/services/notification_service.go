package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/sms"
)

// Notifier delivers booking events to staff and guests
type Notifier interface {
	NotifyBookingRequested(ctx context.Context, snapshot models.BookingSnapshot) error
	NotifyPaymentConfirmed(ctx context.Context, snapshot models.BookingSnapshot) error
	NotifyBookingCancelled(ctx context.Context, snapshot models.BookingSnapshot) error
}

// LogNotifier writes events to the application log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyBookingRequested(_ context.Context, s models.BookingSnapshot) error {
	n.log(s)
	return nil
}

func (n *LogNotifier) NotifyPaymentConfirmed(_ context.Context, s models.BookingSnapshot) error {
	n.log(s)
	return nil
}

func (n *LogNotifier) NotifyBookingCancelled(_ context.Context, s models.BookingSnapshot) error {
	n.log(s)
	return nil
}

func (n *LogNotifier) log(s models.BookingSnapshot) {
	n.logger.WithFields(logrus.Fields{
		"event":       s.Event,
		"kind":        s.Kind,
		"booking_id":  s.BookingID,
		"full_name":   s.FullName,
		"total_price": s.TotalPrice.String(),
	}).Info("Booking notification")
}

// SMSNotifier texts the guest through an SMS gateway
type SMSNotifier struct {
	gateway sms.SMSGateway
	logger  *logrus.Logger
}

// NewSMSNotifier creates a new SMSNotifier
func NewSMSNotifier(gateway sms.SMSGateway, logger *logrus.Logger) *SMSNotifier {
	return &SMSNotifier{gateway: gateway, logger: logger}
}

func (n *SMSNotifier) NotifyBookingRequested(ctx context.Context, s models.BookingSnapshot) error {
	return n.send(ctx, s, fmt.Sprintf("TourHub: we received your booking %s. We will contact you to confirm.", shortID(s.BookingID)))
}

func (n *SMSNotifier) NotifyPaymentConfirmed(ctx context.Context, s models.BookingSnapshot) error {
	return n.send(ctx, s, fmt.Sprintf("TourHub: payment of %s VND for booking %s is confirmed.", s.TotalPrice.StringFixed(0), shortID(s.BookingID)))
}

func (n *SMSNotifier) NotifyBookingCancelled(ctx context.Context, s models.BookingSnapshot) error {
	return n.send(ctx, s, fmt.Sprintf("TourHub: booking %s has been cancelled.", shortID(s.BookingID)))
}

func (n *SMSNotifier) send(ctx context.Context, s models.BookingSnapshot, message string) error {
	if s.Phone == "" {
		return nil
	}
	id, err := n.gateway.Send(ctx, s.Phone, message)
	if err != nil {
		return fmt.Errorf("%s: %w", n.gateway.GetName(), err)
	}
	n.logger.WithFields(logrus.Fields{
		"booking_id": s.BookingID,
		"event":      s.Event,
		"sms_id":     id,
	}).Debug("Booking SMS sent")
	return nil
}

// SQSSendAPI is the part of the SQS client the notifier uses
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSNotifier publishes events to a queue consumed by the email worker
type SQSNotifier struct {
	client   SQSSendAPI
	queueURL string
}

// NewSQSNotifier creates a new SQSNotifier
func NewSQSNotifier(client SQSSendAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

// NewSQSClient builds an SQS client, using static credentials when they are configured
func NewSQSClient(ctx context.Context, cfg config.NotificationConfig) (*sqs.Client, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSKey != "" && cfg.AWSSecret != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSKey, cfg.AWSSecret, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func (n *SQSNotifier) NotifyBookingRequested(ctx context.Context, s models.BookingSnapshot) error {
	return n.publish(ctx, s)
}

func (n *SQSNotifier) NotifyPaymentConfirmed(ctx context.Context, s models.BookingSnapshot) error {
	return n.publish(ctx, s)
}

func (n *SQSNotifier) NotifyBookingCancelled(ctx context.Context, s models.BookingSnapshot) error {
	return n.publish(ctx, s)
}

func (n *SQSNotifier) publish(ctx context.Context, s models.BookingSnapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(string(s.Event))},
			"kind":  {DataType: aws.String("String"), StringValue: aws.String(string(s.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// MultiNotifier fans an event out to every channel and joins their errors
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyBookingRequested(ctx context.Context, s models.BookingSnapshot) error {
	return m.each(func(n Notifier) error { return n.NotifyBookingRequested(ctx, s) })
}

func (m MultiNotifier) NotifyPaymentConfirmed(ctx context.Context, s models.BookingSnapshot) error {
	return m.each(func(n Notifier) error { return n.NotifyPaymentConfirmed(ctx, s) })
}

func (m MultiNotifier) NotifyBookingCancelled(ctx context.Context, s models.BookingSnapshot) error {
	return m.each(func(n Notifier) error { return n.NotifyBookingCancelled(ctx, s) })
}

func (m MultiNotifier) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventDispatcher accepts booking events for best-effort delivery
type EventDispatcher interface {
	Dispatch(snapshot models.BookingSnapshot)
}

// AsyncDispatcher hands events to a Notifier without blocking the caller.
// Delivery failures are logged and never reach the booking flow.
type AsyncDispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *logrus.Logger
	inflight sync.WaitGroup
}

// NewAsyncDispatcher creates a new AsyncDispatcher
func NewAsyncDispatcher(notifier Notifier, timeout time.Duration, logger *logrus.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{notifier: notifier, timeout: timeout, logger: logger}
}

// Dispatch delivers one event in the background
func (d *AsyncDispatcher) Dispatch(s models.BookingSnapshot) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		var err error
		switch s.Event {
		case models.EventBookingRequested:
			err = d.notifier.NotifyBookingRequested(ctx, s)
		case models.EventPaymentConfirmed:
			err = d.notifier.NotifyPaymentConfirmed(ctx, s)
		case models.EventBookingCancelled:
			err = d.notifier.NotifyBookingCancelled(ctx, s)
		default:
			err = fmt.Errorf("unknown notification event %q", s.Event)
		}

		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"event":      s.Event,
				"booking_id": s.BookingID,
			}).Warn("Booking notification failed")
		}
	}()
}

// Wait blocks until every dispatched event has been delivered or given up,
// or until ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
