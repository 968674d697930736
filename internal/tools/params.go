package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JSON numbers arrive as float64; clients also send numbers as strings.

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func requiredString(params map[string]interface{}, key string) (string, error) {
	s := stringParam(params, key)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

func intParam(params map[string]interface{}, key string, def int) (int, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid %s: %v is not an integer", key, v)
		}
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid %s: expected a number", key)
	}
}

func boolParam(params map[string]interface{}, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func uidParam(params map[string]interface{}, key string) (string, error) {
	uid, ok := uidValue(params[key])
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	return uid, nil
}

// uidListParam accepts an array of uids or a comma-separated string.
func uidListParam(params map[string]interface{}, key string) ([]string, error) {
	var uids []string
	switch v := params[key].(type) {
	case string:
		uids = splitList(v)
	case []interface{}:
		for _, item := range v {
			uid, ok := uidValue(item)
			if !ok {
				return nil, fmt.Errorf("invalid %s: %v", key, item)
			}
			uids = append(uids, uid)
		}
	}
	if len(uids) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return uids, nil
}

func uidValue(v interface{}) (string, bool) {
	switch uid := v.(type) {
	case string:
		uid = strings.TrimSpace(uid)
		return uid, uid != ""
	case float64:
		if uid < 1 || uid != math.Trunc(uid) {
			return "", false
		}
		return strconv.FormatInt(int64(uid), 10), true
	}
	return "", false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
