package router

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var ridSeq atomic.Uint64

// newReqID is a short request id: base36 time, sequence and two random chars.
func newReqID() string {
	const alpha = "abcdefghijklmnopqrstuvwxyz0123456789"
	n := ridSeq.Add(1)
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" +
		strconv.FormatUint(n, 36) +
		string(alpha[rand.IntN(len(alpha))]) + string(alpha[rand.IntN(len(alpha))])
}

// parseCommand splits "/name@bot arg1 arg2" into its command name and
// arguments. ok is false when text is not a command.
func parseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return "", nil, false
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	if word == "" {
		return "", nil, false
	}
	return word, parts[1:], true
}

// tokenizeCommandLine splits command text on whitespace, honoring quotes and
// backslash escapes:
//
//	/cmd a "b c"
func tokenizeCommandLine(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteByte(ch)
		case ch == '"' || ch == '\'':
			inQ = true
			qChar = ch
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}
