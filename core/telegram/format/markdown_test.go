package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		in      string
		version int
		want    string
	}{
		{"alice_bob", MarkdownV1, `alice\_bob`},
		{"*bold* [x]", MarkdownV1, `\*bold\* \[x]`},
		{"a`b", MarkdownV1, "a\\`b"},
		{"1.5 (ok)!", MarkdownV2, `1\.5 \(ok\)\!`},
		{"plain", MarkdownV2, "plain"},
	}
	for _, tc := range cases {
		got, err := EscapeMarkdown(tc.in, tc.version)
		if err != nil {
			t.Fatalf("EscapeMarkdown(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("EscapeMarkdown(%q, %d) = %q, want %q", tc.in, tc.version, got, tc.want)
		}
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestMD(t *testing.T) {
	if got := MD("my_name"); got != `my\_name` {
		t.Fatalf("MD = %q", got)
	}
}
