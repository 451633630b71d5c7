package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

// Column adapters convert between domain types and their TEXT storage form.
// Timestamps are RFC 3339 in UTC, dates YYYY-MM-DD, months YYYY-MM, amounts decimal text.

type (
	timeColumn      struct{ t *time.Time }
	lifecycleColumn struct{ l *core.Lifecycle }
	dateColumn      struct{ d *core.Date }
	monthColumn     struct{ m *core.Month }
	statusSetColumn struct{ s *core.StatusSet }
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case string:
		return time.Parse(time.RFC3339Nano, v)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(v))
	case time.Time:
		return v.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func textOf(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported text type %T", src)
	}
}

func (c *timeColumn) Scan(src any) error {
	if src == nil {
		*c.t = time.Time{}
		return nil
	}
	t, err := parseTime(src)
	if err != nil {
		return err
	}
	*c.t = t
	return nil
}

func lifecycleValue(l core.Lifecycle) any {
	if at, ok := l.DeletedAt(); ok {
		return formatTime(at)
	}
	return nil
}

func (c *lifecycleColumn) Scan(src any) error {
	if src == nil {
		*c.l = core.Active()
		return nil
	}
	t, err := parseTime(src)
	if err != nil {
		return err
	}
	*c.l = core.Deleted(t)
	return nil
}

func (c *dateColumn) Scan(src any) error {
	s, err := textOf(src)
	if err != nil {
		return err
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	*c.d = d
	return nil
}

func (c *monthColumn) Scan(src any) error {
	s, err := textOf(src)
	if err != nil {
		return err
	}
	m, err := core.ParseMonth(s)
	if err != nil {
		return err
	}
	*c.m = m
	return nil
}

// statusSetValue encodes the set as a JSON array; the empty set is "[]".
func statusSetValue(s core.StatusSet) string {
	ids := s.IDs()
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func (c *statusSetColumn) Scan(src any) error {
	if src == nil {
		*c.s = core.StatusSet{}
		return nil
	}
	s, err := textOf(src)
	if err != nil {
		return err
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return fmt.Errorf("decode allowed statuses: %w", err)
	}
	*c.s = core.NewStatusSet(ids...)
	return nil
}

func nullDecimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
