package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// OrderKind tags which booking table a payment order belongs to
type OrderKind string

const (
	KindTourBooking OrderKind = "tourBooking"
	KindRoomBooking OrderKind = "roomBooking"
)

// ParseOrderKind is the only place a wire string becomes an OrderKind
func ParseOrderKind(s string) (OrderKind, error) {
	switch OrderKind(s) {
	case KindTourBooking:
		return KindTourBooking, nil
	case KindRoomBooking:
		return KindRoomBooking, nil
	default:
		return "", fmt.Errorf("unknown order kind %q", s)
	}
}

func (k OrderKind) String() string {
	return string(k)
}

// EmbedData travels with the order and comes back in the callback
type EmbedData struct {
	RedirectURL string `json:"redirecturl"`
	Type        string `json:"type"`
}

// OrderDescriptor is a signed ZaloPay create-order request.
// It is built once per payment attempt and never persisted.
type OrderDescriptor struct {
	AppID       string `json:"app_id"`
	AppTransID  string `json:"app_trans_id"`
	AppUser     string `json:"app_user"`
	AppTime     int64  `json:"app_time"`
	Item        string `json:"item"`
	EmbedData   string `json:"embed_data"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BankCode    string `json:"bank_code"`
	CallbackURL string `json:"callback_url"`
	MAC         string `json:"mac"`

	Kind      OrderKind `json:"-"`
	BookingID uuid.UUID `json:"-"`
}

// MACInput is the "|"-joined field list signed with key1
func (o *OrderDescriptor) MACInput() string {
	return strings.Join([]string{
		o.AppID,
		o.AppTransID,
		o.AppUser,
		strconv.FormatInt(o.Amount, 10),
		strconv.FormatInt(o.AppTime, 10),
		o.EmbedData,
		o.Item,
	}, "|")
}

// Values encodes the descriptor as query parameters
func (o *OrderDescriptor) Values() url.Values {
	v := url.Values{}
	v.Set("app_id", o.AppID)
	v.Set("app_trans_id", o.AppTransID)
	v.Set("app_user", o.AppUser)
	v.Set("app_time", strconv.FormatInt(o.AppTime, 10))
	v.Set("item", o.Item)
	v.Set("embed_data", o.EmbedData)
	v.Set("amount", strconv.FormatInt(o.Amount, 10))
	v.Set("description", o.Description)
	v.Set("bank_code", o.BankCode)
	v.Set("callback_url", o.CallbackURL)
	v.Set("mac", o.MAC)
	return v
}

// GatewayOrderResponse is the create-order reply
type GatewayOrderResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZPTransToken     string `json:"zp_trans_token"`
	OrderToken       string `json:"order_token"`
}
