package esewa

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"checkout/internal/domain"
)

// CallbackData is the decoded payload eSewa appends to the success URL.
type CallbackData struct {
	TransactionCode  string
	Status           string
	TotalAmount      string
	TransactionUUID  string
	ProductCode      string
	SignedFieldNames string
	Signature        string
}

type VerifiedPayment struct {
	Data   CallbackData
	Amount decimal.Decimal
	// Decoded is the callback exactly as received, kept for the audit record.
	Decoded map[string]any
}

// Verify decodes a base64 JSON callback, recomputes the signature over the
// fields the gateway declared it signed and checks the reported status.
func (g *Gateway) Verify(encoded string) (*VerifiedPayment, error) {
	raw, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	decoded := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrMalformedResponse, err)
	}

	values := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch tv := v.(type) {
		case string:
			values[k] = tv
		case json.Number:
			values[k] = tv.String()
		case bool:
			values[k] = fmt.Sprint(tv)
		}
	}

	data := CallbackData{
		TransactionCode:  values[FieldTransactionCode],
		Status:           values[FieldStatus],
		TotalAmount:      values[FieldTotalAmount],
		TransactionUUID:  values[FieldTransactionUUID],
		ProductCode:      values[FieldProductCode],
		SignedFieldNames: values[FieldSignedFieldNames],
		Signature:        values[FieldSignature],
	}
	if data.Signature == "" || data.TransactionUUID == "" {
		return nil, fmt.Errorf("%w: signature and transaction_uuid are required", domain.ErrMalformedResponse)
	}

	var fields []string
	for _, name := range strings.Split(data.SignedFieldNames, ",") {
		if name = strings.TrimSpace(name); name != "" {
			fields = append(fields, name)
		}
	}
	message, err := canonicalMessage(fields, values)
	if err != nil {
		return nil, err
	}

	expected := g.sign(message)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(data.Signature)) != 1 {
		return nil, domain.ErrSignatureMismatch
	}
	if data.ProductCode != g.productCode {
		return nil, fmt.Errorf("%w: unexpected product code %q", domain.ErrSignatureMismatch, data.ProductCode)
	}
	if data.Status != StatusComplete {
		return nil, fmt.Errorf("%w: status %q", domain.ErrPaymentNotComplete, data.Status)
	}

	amount, err := ParseAmount(data.TotalAmount)
	if err != nil {
		return nil, err
	}

	return &VerifiedPayment{Data: data, Amount: amount, Decoded: decoded}, nil
}

// ParseAmount accepts the gateway's rendering of amounts, which may include
// thousands separators ("1,000.0").
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid total_amount %q", domain.ErrMalformedResponse, s)
	}
	return amount, nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	if raw, err := base64.URLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
