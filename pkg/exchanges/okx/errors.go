package okx

import (
	"encoding/json"
	"net/http"

	"okx-trader/pkg/exchanges/common"
)

// Codes OKX documents as rate limiting or temporary unavailability.
var transientCodes = map[string]bool{
	"50001": true, // service temporarily unavailable
	"50004": true, // endpoint request timeout
	"50011": true, // rate limit reached
	"50013": true, // system busy
	"50026": true, // system error
	"50061": true, // sub-account rate limit
	"51149": true, // order timed out
}

func classify(op string, status int, code, msg string) *common.APIError {
	kind := common.Permanent
	if transientCodes[code] || status == http.StatusTooManyRequests || status >= 500 {
		kind = common.Transient
	}
	return &common.APIError{Kind: kind, Op: op, Status: status, Code: code, Msg: msg}
}

func classifyStatus(op string, status int, body string) *common.APIError {
	kind := common.Permanent
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = common.Transient
	}
	return &common.APIError{Kind: kind, Op: op, Status: status, Msg: body}
}

// firstItemError extracts a per-item sCode from order style responses, where
// the envelope code is "1" and the reason sits inside data.
func firstItemError(data json.RawMessage) (string, string, bool) {
	var items []struct {
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return "", "", false
	}
	for _, it := range items {
		if it.SCode != "" && it.SCode != "0" {
			return it.SCode, it.SMsg, true
		}
	}
	return "", "", false
}
