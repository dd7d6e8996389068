package compose

import (
	"strconv"
	"strings"

	"coursewatch/pkg/tgui"
)

const blockSep = "\n\n"

// Chunk packs blocks into messages of at most maxLen runes, blank line
// between blocks. Chunk boundaries only fall between blocks. When more than
// one message results and title is set, each message starts with
// "<title> (part i/N)"; that header counts toward maxLen. A message holding
// one block that fits maxLen only without the header is sent without it.
//
// A single block longer than maxLen is sent alone.
func Chunk(blocks []string, maxLen int, title string) []string {
	if len(blocks) == 0 {
		return nil
	}
	groups := Pack(blocks, maxLen)
	if len(groups) <= 1 || strings.TrimSpace(title) == "" {
		return render(groups, nil)
	}

	// The header length depends on N, and N on the space left after the
	// header, so repack until the count settles.
	n := len(groups)
	for i := 0; i < 4; i++ {
		groups = Pack(blocks, maxLen-tgui.Len(partHeader(title, n, n)))
		if len(groups) == n {
			break
		}
		n = len(groups)
	}
	total := len(groups)
	return render(groups, func(i int, body string) string {
		h := partHeader(title, i+1, total)
		if tgui.Len(h)+tgui.Len(body) > maxLen {
			return ""
		}
		return h
	})
}

// Pack groups blocks greedily so each group, joined with blank lines, fits
// in limit runes.
func Pack(blocks []string, limit int) [][]string {
	var (
		out    [][]string
		cur    []string
		curLen int
	)
	for _, b := range blocks {
		bl := tgui.Len(b)
		if len(cur) > 0 && curLen+len(blockSep)+bl > limit {
			out = append(out, cur)
			cur, curLen = nil, 0
		}
		if len(cur) > 0 {
			curLen += len(blockSep)
		}
		cur = append(cur, b)
		curLen += bl
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func partHeader(title string, i, n int) string {
	return tgui.B(title).String() + " (part " + strconv.Itoa(i) + "/" + strconv.Itoa(n) + ")" + blockSep
}

func render(groups [][]string, header func(i int, body string) string) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		body := strings.Join(g, blockSep)
		if header != nil {
			body = header(i, body) + body
		}
		out[i] = body
	}
	return out
}
