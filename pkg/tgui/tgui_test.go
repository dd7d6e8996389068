package tgui

import "testing"

func TestEscAndTags(t *testing.T) {
	t.Parallel()

	if got := B("A&B <c>"); got != "<b>A&amp;B &lt;c&gt;</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := JoinH(" | ", Code("1"), "", I("x")); got != "<code>1</code> | <i>x</i>" {
		t.Fatalf("JoinH = %q", got)
	}
	if got := Lines("a", "", "b"); got != "a\n\nb" {
		t.Fatalf("Lines = %q", got)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"héllo", 3, "hé…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncRunes(tt.in, tt.n); got != tt.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if got := Len(TruncRunes(tt.in, tt.n)); got > tt.n && tt.n > 0 {
			t.Fatalf("Len(TruncRunes(%q, %d)) = %d", tt.in, tt.n, got)
		}
	}
}
