package logx

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field mutates a zerolog event. Fields apply in order; a repeated key is
// written twice and JSON readers keep the last one.
type Field func(e *zerolog.Event)

func String(k, v string) Field  { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field {
	return func(e *zerolog.Event) { e.Int64(k, v) }
}
func Uint64(k string, v uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(k, v) }
}
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field        { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Err logs err under "err". A nil error adds nothing.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

func Stack(stack string) Field {
	return func(e *zerolog.Event) {
		if strings.TrimSpace(stack) != "" {
			e.Str("stack", stack)
		}
	}
}

// Chat tags a line with a subscriber chat id.
func Chat(id int64) Field { return Int64("chat_id", id) }

// Course tags a line with a course code.
func Course(code string) Field { return String("course", code) }

// KV converts alternating key/value pairs, as used by library logging
// interfaces, into Fields. A trailing key without a value is kept with an
// empty value.
func KV(kv ...any) []Field {
	out := make([]Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			out = append(out, String(k, ""))
			break
		}
		switch v := kv[i+1].(type) {
		case string:
			out = append(out, String(k, v))
		case int:
			out = append(out, Int(k, v))
		case bool:
			out = append(out, Bool(k, v))
		case time.Duration:
			out = append(out, Duration(k, v))
		case time.Time:
			out = append(out, Time(k, v))
		case error:
			out = append(out, String(k, v.Error()))
		default:
			out = append(out, Any(k, v))
		}
	}
	return out
}
