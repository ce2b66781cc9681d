package utils

import (
	"sync"
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		now  string
		want string
	}{
		{"2024-01-10", "2024-01-07"}, // Wednesday
		{"2024-01-07", "2024-01-07"}, // Sunday
		{"2024-01-13", "2024-01-07"}, // Saturday
		{"2024-03-01", "2024-02-25"},
	}
	for _, tc := range cases {
		now, err := ParseDay(tc.now, loc)
		if err != nil {
			t.Fatalf("ParseDay(%s): %v", tc.now, err)
		}
		if got := DayString(StartOfWeek(now.Add(15*time.Hour), loc), loc); got != tc.want {
			t.Errorf("StartOfWeek(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestDayStringUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	instant := time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	if got := DayString(instant, tokyo); got != "2024-01-11" {
		t.Errorf("DayString in JST = %s, want 2024-01-11", got)
	}
	if got := DayString(instant, nil); got != "2024-01-10" {
		t.Errorf("DayString in UTC = %s, want 2024-01-10", got)
	}
}

func TestLoadLocationFallback(t *testing.T) {
	def := time.FixedZone("X", 3600)
	if got := LoadLocation("", def); got != def {
		t.Errorf("empty name should return default")
	}
	if got := LoadLocation("Not/AZone", def); got != def {
		t.Errorf("unknown name should return default")
	}
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user:2024-01-10")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
	if km.Len() != 0 {
		t.Errorf("expected locks to be released, %d left", km.Len())
	}
}
