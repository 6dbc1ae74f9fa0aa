package domain

import "strings"

// The gateway has shipped several mutually inconsistent field namings across
// its own versions. Each logical field therefore has an explicit ordered
// alias list, evaluated first-match, instead of ad hoc chained fallbacks.
var (
	orderNoAliases     = []string{"MerOrderNo", "MerchantOrderNo", "OrderNo", "order_no"}
	statusAliases      = []string{"Status", "status"}
	respondCodeAliases = []string{"RespondCode", "respond_code"}
	periodTokenAliases = []string{"PeriodNo", "PeriodToken"}
	authCodeAliases    = []string{"AuthCode", "auth_code"}
)

// Success literals observed from the gateway: an explicit status token or a
// numeric response code.
const (
	statusSuccessToken = "SUCCESS"
	respondCodeSuccess = "00"
)

// ResultPayload is a decoded, decrypted gateway result: a flat mapping of
// field name to string value.
type ResultPayload map[string]string

// First returns the first non-empty value among the given field aliases.
func (p ResultPayload) First(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if v, ok := p[a]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// OrderNo extracts the order identifier, if any alias is present.
func (p ResultPayload) OrderNo() (string, bool) {
	return p.First(orderNoAliases...)
}

// PeriodToken extracts the gateway's recurring-mandate identifier.
func (p ResultPayload) PeriodToken() (string, bool) {
	return p.First(periodTokenAliases...)
}

// AuthCode extracts the gateway authorization code, when sent.
func (p ResultPayload) AuthCode() (string, bool) {
	return p.First(authCodeAliases...)
}

// IsSuccess determines whether the event reports a successful charge.
// Success requires an explicit match — a present-but-different status or
// respond code is a failure, and so is the absence of both fields.
func (p ResultPayload) IsSuccess() bool {
	if v, ok := p.First(statusAliases...); ok && strings.EqualFold(v, statusSuccessToken) {
		return true
	}
	if v, ok := p.First(respondCodeAliases...); ok && v == respondCodeSuccess {
		return true
	}
	return false
}
