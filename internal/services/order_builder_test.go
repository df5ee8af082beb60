package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
)

func testPaymentConfig() *config.PaymentConfig {
	return &config.PaymentConfig{
		AppID:       "2553",
		Key1:        "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL",
		Key2:        "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz",
		Endpoint:    "https://sb-openapi.zalopay.vn/v2/create",
		CallbackURL: "https://api.example.com/api/v1/bookings/callback",
		RedirectURL: "http://localhost:3000/thankyou",
		Timeout:     2 * time.Second,
	}
}

func fixedOrderBuilder(hotels HotelBookingStore, tours TourBookingStore) *OrderBuilder {
	b := NewOrderBuilder(testPaymentConfig(), hotels, tours)
	b.now = func() time.Time { return time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC) }
	b.randN = func(int) int { return 123456 }
	return b
}

func TestDescribe_WireFormat(t *testing.T) {
	builder := fixedOrderBuilder(newFakeHotelStore(), newFakeTourStore())
	bookingID := uuid.MustParse("9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f")

	order, err := builder.Describe(models.KindRoomBooking, bookingID, decimal.NewFromInt(1500000))
	require.NoError(t, err)

	assert.Equal(t, "2553", order.AppID)
	assert.Equal(t, "240610_123456", order.AppTransID)
	assert.Equal(t, bookingID.String(), order.AppUser)
	assert.Equal(t, int64(1718008200000), order.AppTime)
	assert.Equal(t, "[{}]", order.Item)
	assert.Equal(t, `{"redirecturl":"http://localhost:3000/thankyou","type":"roomBooking"}`, order.EmbedData)
	assert.Equal(t, int64(1500000), order.Amount)
	assert.Equal(t, "Payment for the order #123456", order.Description)
	assert.Equal(t, "", order.BankCode)
	assert.Equal(t,
		`2553|240610_123456|9f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f|1500000|1718008200000|{"redirecturl":"http://localhost:3000/thankyou","type":"roomBooking"}|[{}]`,
		order.MACInput())
	assert.Equal(t, "5f0b934294fea8e5793ad31770f6f201190162b95f227d3aceb33e5344ae1eec", order.MAC)
}

func TestDescribe_RejectsNonPositiveAmount(t *testing.T) {
	builder := fixedOrderBuilder(newFakeHotelStore(), newFakeTourStore())

	_, err := builder.Describe(models.KindTourBooking, uuid.New(), decimal.Zero)
	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "totalPrice", validationErr.Field)
}

func TestBuildOrder(t *testing.T) {
	hotels := newFakeHotelStore()
	tours := newFakeTourStore()
	builder := fixedOrderBuilder(hotels, tours)
	ctx := context.Background()

	tour := &models.TourBooking{ID: uuid.New(), TotalPrice: decimal.NewFromInt(3200000), Status: models.TourBookingAwaitingPayment}
	tours.put(tour)

	order, err := builder.BuildOrder(ctx, tour.ID, models.KindTourBooking)
	require.NoError(t, err)
	assert.Equal(t, int64(3200000), order.Amount)
	assert.Contains(t, order.EmbedData, `"type":"tourBooking"`)

	// A tour id is not resolvable as a room booking
	_, err = builder.BuildOrder(ctx, tour.ID, models.KindRoomBooking)
	var notFound *models.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "hotel booking", notFound.Resource)
}

func TestSignHMAC(t *testing.T) {
	assert.Equal(t,
		"7248d6b4ea0180a88e59a4bb990aad6226ac9bcf70d380de3c42785f73bd62b5",
		SignHMAC("kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz", `{"app_trans_id":"x"}`))
}
