package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// codeSuccess is eSMS's CodeResult for an accepted message
const codeSuccess = "100"

// ESMSGateway implements SMS sending via the eSMS.vn REST API
type ESMSGateway struct {
	apiURL    string
	apiKey    string
	secretKey string
	brandname string
	smsType   string
	client    *http.Client
}

// ESMSConfig holds configuration for the eSMS gateway
type ESMSConfig struct {
	APIURL    string
	APIKey    string
	SecretKey string
	Brandname string // required when SMSType is 2 (brandname customer care)
	SMSType   string
	Timeout   time.Duration
}

// NewESMSGateway creates a new eSMS gateway client
func NewESMSGateway(config ESMSConfig) *ESMSGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ESMSGateway{
		apiURL:    strings.TrimRight(config.APIURL, "/"),
		apiKey:    config.APIKey,
		secretKey: config.SecretKey,
		brandname: config.Brandname,
		smsType:   config.SMSType,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendSMSRequest represents the SMS sending request structure
type SendSMSRequest struct {
	ApiKey    string `json:"ApiKey"`
	SecretKey string `json:"SecretKey"`
	Phone     string `json:"Phone"`
	Content   string `json:"Content"`
	Brandname string `json:"Brandname,omitempty"`
	SmsType   string `json:"SmsType"`
	IsUnicode string `json:"IsUnicode"`
	RequestId string `json:"RequestId,omitempty"`
}

// SendSMSResponse represents the SMS sending response structure
type SendSMSResponse struct {
	CodeResult      string `json:"CodeResult"`
	CountRegenerate int    `json:"CountRegenerate"`
	SMSID           string `json:"SMSID"`
	ErrorMessage    string `json:"ErrorMessage"`
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// FormatPhoneForESMS converts phone number to the local 10-digit format
// Input: "0912345678", "84912345678" or "+84 91 234 5678"
// Output: "0912345678"
func FormatPhoneForESMS(phone string) (string, error) {
	phone = nonDigits.ReplaceAllString(phone, "")

	if strings.HasPrefix(phone, "84") && len(phone) == 11 {
		phone = "0" + phone[2:]
	}

	if len(phone) != 10 || !strings.HasPrefix(phone, "0") {
		return "", fmt.Errorf("invalid phone number: %d digits after formatting (expected 10 starting with 0)", len(phone))
	}

	return phone, nil
}

// Send sends a message to a single phone number
func (g *ESMSGateway) Send(ctx context.Context, phone, message string) (string, error) {
	formattedPhone, err := FormatPhoneForESMS(phone)
	if err != nil {
		return "", err
	}

	smsReq := SendSMSRequest{
		ApiKey:    g.apiKey,
		SecretKey: g.secretKey,
		Phone:     formattedPhone,
		Content:   message,
		Brandname: g.brandname,
		SmsType:   g.smsType,
		IsUnicode: isUnicode(message),
		RequestId: fmt.Sprintf("%d", time.Now().UnixMicro()),
	}

	jsonData, err := json.Marshal(smsReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("%s/SendMultipleMessage_V4_post_json/", g.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SMS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var smsResp SendSMSResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return "", fmt.Errorf("failed to parse SMS response: %w", err)
	}

	if smsResp.CodeResult != codeSuccess {
		return "", fmt.Errorf("SMS sending failed: %s (code: %s)", smsResp.ErrorMessage, smsResp.CodeResult)
	}

	return smsResp.SMSID, nil
}

// GetName returns the name of this SMS gateway
func (g *ESMSGateway) GetName() string {
	return "eSMS.vn Gateway"
}

func isUnicode(message string) string {
	for _, r := range message {
		if r > 127 {
			return "1"
		}
	}
	return "0"
}
