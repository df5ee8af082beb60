package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tourhub/booking-backend/internal/models"
)

type mockSMSGateway struct {
	mock.Mock
}

func (m *mockSMSGateway) Send(ctx context.Context, phone, message string) (string, error) {
	args := m.Called(ctx, phone, message)
	return args.String(0), args.Error(1)
}

func (m *mockSMSGateway) GetName() string {
	return "mock"
}

type fakeSQS struct {
	mu    sync.Mutex
	sent  []*sqs.SendMessageInput
	err   error
	delay time.Duration
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func (f *fakeSQS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testSnapshot(event models.NotificationEvent) models.BookingSnapshot {
	return models.BookingSnapshot{
		Event:      event,
		Kind:       models.KindRoomBooking,
		BookingID:  "9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f",
		FullName:   "Nguyen Van A",
		Phone:      "0912345678",
		HotelName:  "Sunrise Riverside",
		TotalPrice: decimal.NewFromInt(1500000),
	}
}

func TestSMSNotifier(t *testing.T) {
	gateway := &mockSMSGateway{}
	gateway.On("Send", mock.Anything, "0912345678", "TourHub: payment of 1500000 VND for booking 9f1c2d3e is confirmed.").Return("sms-1", nil)
	notifier := NewSMSNotifier(gateway, testLogger())

	require.NoError(t, notifier.NotifyPaymentConfirmed(context.Background(), testSnapshot(models.EventPaymentConfirmed)))
	gateway.AssertExpectations(t)

	// Bookings without a phone are skipped
	s := testSnapshot(models.EventBookingCancelled)
	s.Phone = ""
	require.NoError(t, notifier.NotifyBookingCancelled(context.Background(), s))
	gateway.AssertNumberOfCalls(t, "Send", 1)
}

func TestSQSNotifier(t *testing.T) {
	client := &fakeSQS{}
	notifier := NewSQSNotifier(client, "https://sqs.ap-southeast-1.amazonaws.com/123/booking-events")

	require.NoError(t, notifier.NotifyBookingRequested(context.Background(), testSnapshot(models.EventBookingRequested)))
	require.Equal(t, 1, client.count())

	msg := client.sent[0]
	assert.Equal(t, "https://sqs.ap-southeast-1.amazonaws.com/123/booking-events", aws.ToString(msg.QueueUrl))
	assert.Equal(t, "booking_requested", aws.ToString(msg.MessageAttributes["event"].StringValue))
	assert.Equal(t, "roomBooking", aws.ToString(msg.MessageAttributes["kind"].StringValue))

	var body models.BookingSnapshot
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(msg.MessageBody)), &body))
	assert.Equal(t, "Sunrise Riverside", body.HotelName)
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	ok := &fakeSQS{}
	failing := &fakeSQS{err: errors.New("queue does not exist")}
	multi := MultiNotifier{NewLogNotifier(testLogger()), NewSQSNotifier(failing, "q1"), NewSQSNotifier(ok, "q2")}

	err := multi.NotifyBookingCancelled(context.Background(), testSnapshot(models.EventBookingCancelled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue does not exist")
	assert.Equal(t, 1, ok.count())
}

func TestAsyncDispatcher(t *testing.T) {
	client := &fakeSQS{}
	dispatcher := NewAsyncDispatcher(NewSQSNotifier(client, "q"), time.Second, testLogger())

	dispatcher.Dispatch(testSnapshot(models.EventPaymentConfirmed))
	assert.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncDispatcher_WaitDrainsInflight(t *testing.T) {
	client := &fakeSQS{delay: 50 * time.Millisecond}
	dispatcher := NewAsyncDispatcher(NewSQSNotifier(client, "q"), time.Second, testLogger())

	dispatcher.Dispatch(testSnapshot(models.EventPaymentConfirmed))
	dispatcher.Dispatch(testSnapshot(models.EventBookingCancelled))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, dispatcher.Wait(ctx))
	assert.Equal(t, 2, client.count())
}

func TestAsyncDispatcher_WaitHonoursDeadline(t *testing.T) {
	client := &fakeSQS{delay: 500 * time.Millisecond}
	dispatcher := NewAsyncDispatcher(NewSQSNotifier(client, "q"), time.Second, testLogger())

	dispatcher.Dispatch(testSnapshot(models.EventPaymentConfirmed))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, dispatcher.Wait(ctx), context.DeadlineExceeded)
}

func TestAsyncDispatcher_DoesNotBlockCaller(t *testing.T) {
	client := &fakeSQS{delay: 200 * time.Millisecond}
	dispatcher := NewAsyncDispatcher(NewSQSNotifier(client, "q"), 50*time.Millisecond, testLogger())

	start := time.Now()
	dispatcher.Dispatch(testSnapshot(models.EventPaymentConfirmed))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// The delivery deadline cancels the slow send
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, client.count())
}
