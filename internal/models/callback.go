package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Callback return codes understood by the gateway
const (
	ReturnCodeSuccess  = 1  // accepted, or already applied
	ReturnCodeRetry    = 0  // transient failure, gateway retries
	ReturnCodeRejected = -1 // signature failure or unresolvable order
)

// CallbackPayload is the body the gateway POSTs to the callback URL
type CallbackPayload struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

// CallbackResult is the response body returned to the gateway
type CallbackResult struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// CallbackData is the decoded content of CallbackPayload.Data
type CallbackData struct {
	AppID          string
	AppTransID     string
	AppUser        string
	AppTime        int64
	Amount         int64
	EmbedData      string
	Item           string
	ZPTransID      string
	ServerTime     int64
	Channel        int
	MerchantUserID string
	UserFeeAmount  int64
	DiscountAmount int64
}

// ParseCallbackData decodes the data blob. The gateway sends numeric fields
// either as JSON numbers or as strings, so every field goes through cast.
func ParseCallbackData(raw string) (*CallbackData, error) {
	fields := map[string]interface{}{}
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid callback data: %w", err)
	}

	data := &CallbackData{
		AppID:          cast.ToString(fields["app_id"]),
		AppTransID:     cast.ToString(fields["app_trans_id"]),
		AppUser:        cast.ToString(fields["app_user"]),
		EmbedData:      cast.ToString(fields["embed_data"]),
		Item:           cast.ToString(fields["item"]),
		ZPTransID:      cast.ToString(fields["zp_trans_id"]),
		MerchantUserID: cast.ToString(fields["merchant_user_id"]),
	}

	var err error
	if data.Amount, err = cast.ToInt64E(fields["amount"]); err != nil {
		return nil, fmt.Errorf("invalid callback amount: %w", err)
	}
	data.AppTime = cast.ToInt64(fields["app_time"])
	data.ServerTime = cast.ToInt64(fields["server_time"])
	data.Channel = cast.ToInt(fields["channel"])
	data.UserFeeAmount = cast.ToInt64(fields["user_fee_amount"])
	data.DiscountAmount = cast.ToInt64(fields["discount_amount"])

	if data.AppUser == "" {
		return nil, fmt.Errorf("callback data has no app_user")
	}

	return data, nil
}

// Embed decodes the embed_data carried through the gateway
func (d *CallbackData) Embed() (*EmbedData, error) {
	var embed EmbedData
	if err := json.Unmarshal([]byte(d.EmbedData), &embed); err != nil {
		return nil, fmt.Errorf("invalid embed_data: %w", err)
	}
	return &embed, nil
}
