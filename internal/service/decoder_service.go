package service

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"subscription-engine/internal/core/domain"
)

// ErrMissingPayload signals that no ciphertext field was found under any
// known alias. The caller acknowledges and drops such deliveries.
var ErrMissingPayload = errors.New("no ciphertext field present in request body")

// Field aliases in priority order. Different gateway product lines and
// proxy layers have shipped all of these.
var (
	ciphertextAliases = []string{"Period", "period", "PostData_", "TradeInfo"}
	signatureAliases  = []string{"TradeSha", "TradeSHA"}
)

// WebhookEnvelope is the outer layer of a gateway callback: the encrypted
// blob plus an optional detached signature.
type WebhookEnvelope struct {
	Ciphertext string
	Signature  *string
	Fields     map[string]string
}

// FormDecoder normalizes inbound webhook bodies. Gateways in the wild send
// urlencoded forms, multipart forms, and occasionally raw JSON, sometimes
// with a Content-Type that does not match the body.
type FormDecoder struct{}

func NewFormDecoder() *FormDecoder {
	return &FormDecoder{}
}

// Decode parses the body according to contentType and extracts the
// envelope. Parsing is best effort: a malformed body yields whatever fields
// could be recovered, and only a missing ciphertext is an error.
func (d *FormDecoder) Decode(body []byte, contentType string) (*WebhookEnvelope, error) {
	fields := d.parseFields(body, contentType)

	env := &WebhookEnvelope{Fields: fields}
	for _, alias := range ciphertextAliases {
		if v, ok := fields[alias]; ok && strings.TrimSpace(v) != "" {
			env.Ciphertext = normalizeCiphertext(v)
			break
		}
	}
	if env.Ciphertext == "" {
		return nil, ErrMissingPayload
	}

	for _, alias := range signatureAliases {
		if v, ok := fields[alias]; ok && strings.TrimSpace(v) != "" {
			sig := strings.TrimSpace(v)
			env.Signature = &sig
			break
		}
	}
	return env, nil
}

func (d *FormDecoder) parseFields(body []byte, contentType string) map[string]string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "application/json":
		return parseJSONFields(body)
	case mediaType == "multipart/form-data":
		if fields := parseMultipartFields(body, params["boundary"]); len(fields) > 0 {
			return fields
		}
		return parseURLEncodedFields(body)
	default:
		// urlencoded, text/plain carrying a form, or no usable header
		return parseURLEncodedFields(body)
	}
}

func parseURLEncodedFields(body []byte) map[string]string {
	fields := make(map[string]string)
	// ParseQuery returns the values parsed so far even on error.
	values, _ := url.ParseQuery(string(body))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return fields
}

func parseMultipartFields(body []byte, boundary string) map[string]string {
	fields := make(map[string]string)
	if boundary == "" {
		return fields
	}
	mr := multipart.NewReader(strings.NewReader(string(body)), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF or a malformed tail; keep what we have
			return fields
		}
		name := part.FormName()
		if name == "" || part.FileName() != "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		fields[name] = string(data)
	}
}

// parseJSONFields flattens a JSON object into string fields. Scalars of a
// one-level-deep nested object are merged in without overwriting top-level
// keys, which covers payloads that nest under "Result".
func parseJSONFields(body []byte) map[string]string {
	fields := make(map[string]string)
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return fields
	}
	for k, v := range obj {
		if s, ok := stringifyScalar(v); ok {
			fields[k] = s
		}
	}
	for _, v := range obj {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for k, nv := range nested {
			if _, exists := fields[k]; exists {
				continue
			}
			if s, ok := stringifyScalar(nv); ok {
				fields[k] = s
			}
		}
	}
	return fields
}

func stringifyScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// normalizeCiphertext trims whitespace and reverses an extra layer of
// percent-encoding some proxies apply. PathUnescape is used on purpose so
// that '+' in base64 ciphertexts survives.
func normalizeCiphertext(v string) string {
	v = strings.TrimSpace(v)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return strings.TrimSpace(unescaped)
	}
	return v
}

// ParseResultPayload turns decrypted plaintext into a flat field map. JSON
// is tried first, urlencoded form as the fallback.
func ParseResultPayload(plaintext string) domain.ResultPayload {
	if fields := parseJSONFields([]byte(plaintext)); len(fields) > 0 {
		return domain.ResultPayload(fields)
	}
	return domain.ResultPayload(parseURLEncodedFields([]byte(plaintext)))
}
