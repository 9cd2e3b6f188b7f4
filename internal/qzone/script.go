package qzone

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/jsonc"
)

const callbackMarker = "frameElement.callback("

// extractCallbackCode digs the application result code out of an HTML
// response whose payload is a frameElement.callback({...}) invocation inside
// a <script> tag. The argument is a JS object literal, not strict JSON, so
// it goes through jsonc first. Returns ok=false when no callback is found.
func extractCallbackCode(html string) (int64, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, false
	}

	var code int64
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		start := strings.Index(text, callbackMarker)
		if start < 0 {
			return true
		}
		start += len(callbackMarker)
		end := strings.LastIndex(text, ");")
		if end <= start {
			return true
		}

		arg := strings.TrimSpace(text[start:end])
		arg = strings.TrimSuffix(arg, ";")

		var payload struct {
			Code *int64 `json:"code"`
		}
		if err := json.Unmarshal(jsonc.ToJSON([]byte(arg)), &payload); err != nil || payload.Code == nil {
			return true
		}
		code = *payload.Code
		found = true
		return false
	})
	return code, found
}
