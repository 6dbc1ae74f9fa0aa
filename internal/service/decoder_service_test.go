package service

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_URLEncoded(t *testing.T) {
	d := NewFormDecoder()
	body := url.Values{
		"Period":   {"deadbeef"},
		"TradeSha": {"ABC123"},
		"Extra":    {"x"},
	}.Encode()

	env, err := d.Decode([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", env.Ciphertext)
	require.NotNil(t, env.Signature)
	assert.Equal(t, "ABC123", *env.Signature)
}

func TestDecode_AliasPriority(t *testing.T) {
	d := NewFormDecoder()

	// PostData_ loses to Period, TradeSHA loses to TradeSha
	body := "PostData_=second&Period=first&TradeSHA=low&TradeSha=high"
	env, err := d.Decode([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "first", env.Ciphertext)
	assert.Equal(t, "high", *env.Signature)

	// empty preferred alias falls through to the next one
	body = "Period=&TradeInfo=fallback"
	env, err = d.Decode([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "fallback", env.Ciphertext)
}

func TestDecode_Multipart(t *testing.T) {
	d := NewFormDecoder()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("period", "cafebabe"))
	require.NoError(t, mw.WriteField("TradeSha", "sig"))
	require.NoError(t, mw.Close())

	env, err := d.Decode(buf.Bytes(), mw.FormDataContentType())
	require.NoError(t, err)
	assert.Equal(t, "cafebabe", env.Ciphertext)
	assert.Equal(t, "sig", *env.Signature)
}

func TestDecode_JSON(t *testing.T) {
	d := NewFormDecoder()

	body := `{"TradeInfo":"abc123","TradeSha":"S1","Amt":120}`
	env, err := d.Decode([]byte(body), "application/json; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "abc123", env.Ciphertext)
	assert.Equal(t, "S1", *env.Signature)
	assert.Equal(t, "120", env.Fields["Amt"])
}

func TestDecode_MissingContentType(t *testing.T) {
	d := NewFormDecoder()

	env, err := d.Decode([]byte("Period=deadbeef"), "")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", env.Ciphertext)
	assert.Nil(t, env.Signature)
}

func TestDecode_MissingPayload(t *testing.T) {
	d := NewFormDecoder()

	_, err := d.Decode([]byte("Other=1"), "application/x-www-form-urlencoded")
	assert.ErrorIs(t, err, ErrMissingPayload)

	_, err = d.Decode(nil, "application/json")
	assert.ErrorIs(t, err, ErrMissingPayload)
}

func TestNormalizeCiphertext(t *testing.T) {
	// extra percent-encoding layer is reversed
	assert.Equal(t, "a+b/c=", normalizeCiphertext(" a%2Bb/c%3D "))
	// '+' survives as-is, unlike query unescaping
	assert.Equal(t, "a+b==", normalizeCiphertext("a+b=="))
	// invalid escape sequences are left alone
	assert.Equal(t, "50%zz", normalizeCiphertext("50%zz"))
}

func TestParseResultPayload(t *testing.T) {
	p := ParseResultPayload(`{"Status":"SUCCESS","Result":{"MerOrderNo":"ORD-1","PeriodNo":"P0001"}}`)
	orderNo, ok := p.OrderNo()
	require.True(t, ok)
	assert.Equal(t, "ORD-1", orderNo)
	assert.True(t, p.IsSuccess())

	p = ParseResultPayload("Status=FAIL&MerOrderNo=ORD-2&RespondCode=99")
	orderNo, ok = p.OrderNo()
	require.True(t, ok)
	assert.Equal(t, "ORD-2", orderNo)
	assert.False(t, p.IsSuccess())
}
