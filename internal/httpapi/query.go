package httpapi

import (
	"net/url"
	"strconv"
	"time"

	"github.com/tasklink/notionbridge/internal/core/errs"
)

func queryInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &errs.ValidationError{Message: key + " must be an integer", Field: key}
	}
	return v, nil
}

func queryTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &errs.ValidationError{Message: key + " must be an RFC 3339 timestamp", Field: key}
	}
	return &t, nil
}
