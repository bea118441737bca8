package internal

import "testing"

func TestNewOTP(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		otp, err := NewOTP(digits)
		if err != nil {
			t.Fatalf("NewOTP(%d): %v", digits, err)
		}
		if len(otp) != digits {
			t.Fatalf("NewOTP(%d) returned %d digits", digits, len(otp))
		}
		for _, c := range otp {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit %q in %q", c, otp)
			}
		}
	}
	for _, digits := range []int{0, 5, 11} {
		if _, err := NewOTP(digits); err == nil {
			t.Fatalf("NewOTP(%d) should fail", digits)
		}
	}
}

func TestRandomIndexRange(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		n, err := RandomIndex(4)
		if err != nil {
			t.Fatalf("RandomIndex: %v", err)
		}
		if n < 0 || n >= 4 {
			t.Fatalf("index %d out of range", n)
		}
		seen[n] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected all indexes to appear, saw %v", seen)
	}
	if _, err := RandomIndex(0); err == nil {
		t.Fatal("RandomIndex(0) should fail")
	}
}
