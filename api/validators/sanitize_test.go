package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "  Ana  ", maxLen: 10, want: "Ana"},
		{in: "a\x00b\nc", maxLen: 0, want: "abc"},
		{in: "abcdef", maxLen: 3, want: "abc"},
		{in: "Zoë", maxLen: 3, want: "Zo"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.maxLen); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestValidQuoteKey(t *testing.T) {
	for _, key := range []string{"flow-1", "a1b2_c3", "session:42.v2"} {
		if !ValidQuoteKey(key) {
			t.Fatalf("expected %q to be valid", key)
		}
	}
	long := make([]byte, MaxQuoteKeyLen+1)
	for i := range long {
		long[i] = 'a'
	}
	for _, key := range []string{"", "has space", "slash/key", "ключ", string(long)} {
		if ValidQuoteKey(key) {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}
