package indexer

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t \n\n ", ""},
		{"crlf and cr", "a\r\nb\rc", "a\nb\nc"},
		{"horizontal runs", "a  \t  b\t\tc", "a b c"},
		{"blank line runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"double newline kept", "a\n\nb", "a\n\nb"},
		{"crlf blank lines", "a\r\n\r\n\r\nb", "a\n\nb"},
		{"trim", "  padded  \n", "padded"},
		{"cjk untouched", "第一頁　內容", "第一頁　內容"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a \n\n \n b",
		"\r\r\r\n\t x \t\r\n\r\n\r\n y ",
		"line one\n\n\n\nline two  \t three\r\n",
		" lead and trail ",
		sampleText(),
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}
