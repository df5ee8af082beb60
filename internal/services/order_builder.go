package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
)

const emptyItems = "[{}]"

// OrderBuilder produces signed ZaloPay create-order descriptors
type OrderBuilder struct {
	config *config.PaymentConfig
	hotels HotelBookingStore
	tours  TourBookingStore
	now    func() time.Time
	randN  func(n int) int
}

// NewOrderBuilder creates a new OrderBuilder
func NewOrderBuilder(cfg *config.PaymentConfig, hotels HotelBookingStore, tours TourBookingStore) *OrderBuilder {
	return &OrderBuilder{
		config: cfg,
		hotels: hotels,
		tours:  tours,
		now:    time.Now,
		randN:  rand.IntN,
	}
}

// BuildOrder loads the booking of the given kind and signs an order for its total
func (b *OrderBuilder) BuildOrder(ctx context.Context, bookingID uuid.UUID, kind models.OrderKind) (*models.OrderDescriptor, error) {
	var total decimal.Decimal

	switch kind {
	case models.KindRoomBooking:
		booking, err := b.hotels.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil || booking.IsDelete {
			return nil, models.NewNotFoundError("hotel booking", bookingID)
		}
		total = booking.TotalPrice
	case models.KindTourBooking:
		booking, err := b.tours.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil || booking.IsDelete {
			return nil, models.NewNotFoundError("tour booking", bookingID)
		}
		total = booking.TotalPrice
	default:
		return nil, fmt.Errorf("unknown order kind %q", kind)
	}

	return b.Describe(kind, bookingID, total)
}

// Describe signs an order for an already loaded booking
func (b *OrderBuilder) Describe(kind models.OrderKind, bookingID uuid.UUID, total decimal.Decimal) (*models.OrderDescriptor, error) {
	amount := total.Round(0).IntPart()
	if amount <= 0 {
		return nil, models.NewValidationError("totalPrice", "amount must be greater than zero")
	}

	embed, err := json.Marshal(models.EmbedData{
		RedirectURL: b.config.RedirectURL,
		Type:        kind.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed data: %w", err)
	}

	now := b.now()
	transID := strconv.Itoa(b.randN(1000000))

	order := &models.OrderDescriptor{
		AppID:       b.config.AppID,
		AppTransID:  fmt.Sprintf("%s_%s", now.Format("060102"), transID),
		AppUser:     bookingID.String(),
		AppTime:     now.UnixMilli(),
		Item:        emptyItems,
		EmbedData:   string(embed),
		Amount:      amount,
		Description: "Payment for the order #" + transID,
		BankCode:    "",
		CallbackURL: b.config.CallbackURL,
		Kind:        kind,
		BookingID:   bookingID,
	}
	order.MAC = SignHMAC(b.config.Key1, order.MACInput())

	return order, nil
}

// SignHMAC returns hex(HMAC-SHA256(data, key))
func SignHMAC(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
