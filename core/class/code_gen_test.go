package class

import (
	"strings"
	"testing"
)

func Test_generateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode() failed: %v", err)
		}
		if len(code) != codeLen {
			t.Errorf("len(code) = %d; want %d", len(code), codeLen)
		}
		for _, char := range code {
			if !strings.ContainsRune(codeAlphabet, char) {
				t.Errorf("code %q contains %q; not in alphabet", code, char)
			}
		}
		seen[code] = true
	}
	// 100 draws from a 31^6 space should not all collide
	if len(seen) < 2 {
		t.Errorf("generateCode() produced %d distinct codes out of 100", len(seen))
	}
}
