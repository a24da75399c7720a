package ingest

import "testing"

func TestGuardWouldExceed(t *testing.T) {
	guard := Guard{HardLimit: 10, WarnLimit: 8}

	cases := []struct {
		name      string
		collected int
		incoming  int
		want      bool
	}{
		{"well under", 0, 5, false},
		{"exactly at limit", 5, 5, false},
		{"one over", 5, 6, true},
		{"already full", 10, 1, true},
		{"empty batch at limit", 10, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := guard.WouldExceed(tc.collected, tc.incoming); got != tc.want {
				t.Fatalf("WouldExceed(%d, %d) = %v", tc.collected, tc.incoming, got)
			}
		})
	}
}

func TestGuardDisabled(t *testing.T) {
	guard := Guard{}
	if guard.WouldExceed(1_000_000, 1) {
		t.Fatal("zero hard limit should never exceed")
	}
	if guard.NearLimit(1_000_000) {
		t.Fatal("zero warn limit should never warn")
	}
	if got := guard.Remaining(5); got != -1 {
		t.Fatalf("Remaining = %d", got)
	}
}

func TestGuardNearLimit(t *testing.T) {
	guard := Guard{HardLimit: 10, WarnLimit: 8}
	if guard.NearLimit(7) {
		t.Fatal("7 should be under the warn threshold")
	}
	if !guard.NearLimit(8) {
		t.Fatal("8 should warn")
	}
	if !guard.NearLimit(10) {
		t.Fatal("10 should warn")
	}
}

func TestGuardRemaining(t *testing.T) {
	guard := Guard{HardLimit: 10}
	if got := guard.Remaining(4); got != 6 {
		t.Fatalf("Remaining(4) = %d", got)
	}
	if got := guard.Remaining(12); got != 0 {
		t.Fatalf("Remaining(12) = %d", got)
	}
}
