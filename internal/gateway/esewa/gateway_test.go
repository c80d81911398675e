package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout/internal/domain"
)

const (
	testProductCode = "EPAYTEST"
	testSecret      = "8gBm/:&EnhH.1/q"
)

func newTestGateway(secret string) *Gateway {
	return NewGateway(Config{
		ProductCode: testProductCode,
		SecretKey:   secret,
		PaymentURL:  "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
		SuccessURL:  "http://localhost:3001/complete-payment",
		FailureURL:  "http://localhost:3001/",
	})
}

func hmacBase64(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// encodeCallback builds a callback the way eSewa does, signing the listed
// fields unless a signature is already present.
func encodeCallback(t *testing.T, secret string, fields map[string]any) string {
	t.Helper()
	if _, ok := fields[FieldSignature]; !ok {
		msg := "transaction_code=" + fields[FieldTransactionCode].(string) +
			",status=" + fields[FieldStatus].(string) +
			",total_amount=" + fields[FieldTotalAmount].(string) +
			",transaction_uuid=" + fields[FieldTransactionUUID].(string) +
			",product_code=" + fields[FieldProductCode].(string) +
			",signed_field_names=" + fields[FieldSignedFieldNames].(string)
		fields[FieldSignature] = hmacBase64(secret, msg)
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func flipFirstByte(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func callbackFields(status string) map[string]any {
	return map[string]any{
		FieldTransactionCode:  "000AWEO",
		FieldStatus:           status,
		FieldTotalAmount:      "500.0",
		FieldTransactionUUID:  "3f2b8c1e-6f55-4d1c-9f0e-5a2f9b7c1d11",
		FieldProductCode:      testProductCode,
		FieldSignedFieldNames: "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names",
	}
}

func TestSign_MatchesCanonicalMessage(t *testing.T) {
	g := newTestGateway(testSecret)

	req, err := g.Sign(decimal.NewFromInt(100), "11-201-13")
	require.NoError(t, err)

	want := hmacBase64(testSecret, "total_amount=100,transaction_uuid=11-201-13,product_code=EPAYTEST")
	assert.Equal(t, want, req.Signature)
	assert.Equal(t, "total_amount,transaction_uuid,product_code", req.SignedFieldNames)
	assert.Equal(t, "100", req.TotalAmount)
	assert.Equal(t, "100", req.Amount)
	assert.Equal(t, "0", req.TaxAmount)
	assert.Equal(t, testProductCode, req.ProductCode)
	assert.Equal(t, "http://localhost:3001/complete-payment", req.SuccessURL)
	assert.NotContains(t, req.Signature, testSecret)
}

func TestSign_Deterministic(t *testing.T) {
	g := newTestGateway(testSecret)
	a, err := g.Sign(decimal.NewFromInt(500), "ref-1")
	require.NoError(t, err)
	b, err := g.Sign(decimal.RequireFromString("500.00"), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, a.Signature, b.Signature)
}

func TestSign_AnyInputChangesSignature(t *testing.T) {
	base, err := newTestGateway(testSecret).Sign(decimal.NewFromInt(500), "ref-1")
	require.NoError(t, err)

	otherAmount, err := newTestGateway(testSecret).Sign(decimal.NewFromInt(501), "ref-1")
	require.NoError(t, err)
	otherRef, err := newTestGateway(testSecret).Sign(decimal.NewFromInt(500), "ref-2")
	require.NoError(t, err)
	otherSecret, err := newTestGateway("another-secret").Sign(decimal.NewFromInt(500), "ref-1")
	require.NoError(t, err)

	assert.NotEqual(t, base.Signature, otherAmount.Signature)
	assert.NotEqual(t, base.Signature, otherRef.Signature)
	assert.NotEqual(t, base.Signature, otherSecret.Signature)
}

func TestSign_RejectsBadInput(t *testing.T) {
	g := newTestGateway(testSecret)

	_, err := g.Sign(decimal.Zero, "ref-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = g.Sign(decimal.NewFromInt(10), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerify_ValidCallback(t *testing.T) {
	g := newTestGateway(testSecret)
	encoded := encodeCallback(t, testSecret, callbackFields(StatusComplete))

	vp, err := g.Verify(encoded)
	require.NoError(t, err)
	assert.Equal(t, "000AWEO", vp.Data.TransactionCode)
	assert.Equal(t, "3f2b8c1e-6f55-4d1c-9f0e-5a2f9b7c1d11", vp.Data.TransactionUUID)
	assert.True(t, vp.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, StatusComplete, vp.Decoded[FieldStatus])
}

func TestVerify_Failures(t *testing.T) {
	g := newTestGateway(testSecret)

	tamperedSig := callbackFields(StatusComplete)
	_ = encodeCallback(t, testSecret, tamperedSig)
	tamperedSig[FieldSignature] = flipFirstByte(tamperedSig[FieldSignature].(string))

	// Signed as PENDING, then the status rewritten to COMPLETE.
	forged := callbackFields("PENDING")
	_ = encodeCallback(t, testSecret, forged)
	forged[FieldStatus] = StatusComplete

	otherProduct := callbackFields(StatusComplete)
	otherProduct[FieldProductCode] = "OTHER"

	unknownField := callbackFields(StatusComplete)
	unknownField[FieldSignedFieldNames] = "total_amount,ref_id"
	unknownField[FieldSignature] = "irrelevant"

	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{name: "not base64", encoded: "%%%not-base64%%%", wantErr: domain.ErrMalformedResponse},
		{name: "not json", encoded: base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: domain.ErrMalformedResponse},
		{name: "empty", encoded: "", wantErr: domain.ErrMalformedResponse},
		{name: "tampered signature", encoded: encodeCallback(t, testSecret, tamperedSig), wantErr: domain.ErrSignatureMismatch},
		{name: "status rewritten", encoded: encodeCallback(t, testSecret, forged), wantErr: domain.ErrSignatureMismatch},
		{name: "signed with another secret", encoded: encodeCallback(t, "wrong-secret", callbackFields(StatusComplete)), wantErr: domain.ErrSignatureMismatch},
		{name: "other product code", encoded: encodeCallback(t, testSecret, otherProduct), wantErr: domain.ErrSignatureMismatch},
		{name: "unknown signed field", encoded: encodeCallback(t, testSecret, unknownField), wantErr: domain.ErrMalformedResponse},
		{name: "gateway reports pending", encoded: encodeCallback(t, testSecret, callbackFields("PENDING")), wantErr: domain.ErrPaymentNotComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Verify(tt.encoded)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify_FieldOrderMatters(t *testing.T) {
	g := newTestGateway(testSecret)
	fields := callbackFields(StatusComplete)
	_ = encodeCallback(t, testSecret, fields)
	fields[FieldSignedFieldNames] = "status,transaction_code,total_amount,transaction_uuid,product_code,signed_field_names"

	_, err := g.Verify(encodeCallback(t, testSecret, fields))
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("1,000.0")
	require.NoError(t, err)
	assert.True(t, a.Equal(decimal.NewFromInt(1000)))

	_, err = ParseAmount("ten")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}
