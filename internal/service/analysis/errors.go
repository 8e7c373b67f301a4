package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClassifyError renders a non-2xx response body as a human-readable message.
//
// A list-shaped "detail" is treated as field validation errors and rendered as
// "field: message" entries. Otherwise the first string among detail, message and
// error is used. Bodies that are not JSON objects are returned verbatim.
func ClassifyError(body []byte, status int) string {
	text := strings.TrimSpace(string(body))

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		if text == "" {
			return fmt.Sprintf("analysis request failed with HTTP %d", status)
		}
		return text
	}

	if list, ok := obj["detail"].([]any); ok {
		if msgs := validationMessages(list); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	return text
}

func validationMessages(list []any) []string {
	msgs := make([]string, 0, len(list))
	for _, entry := range list {
		switch e := entry.(type) {
		case string:
			msgs = append(msgs, e)
		case map[string]any:
			msg, _ := e["msg"].(string)
			field := fieldName(e["loc"])
			switch {
			case field != "" && msg != "":
				msgs = append(msgs, field+": "+msg)
			case msg != "":
				msgs = append(msgs, msg)
			}
		}
	}
	return msgs
}

// fieldName picks the last element of a loc path, e.g. ["body", "audio_file"].
func fieldName(loc any) string {
	switch l := loc.(type) {
	case string:
		return l
	case []any:
		if len(l) == 0 {
			return ""
		}
		return fmt.Sprint(l[len(l)-1])
	default:
		return ""
	}
}
