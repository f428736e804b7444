package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Clock
		wantErr bool
	}{
		{input: "09:00", want: Clock{Hour: 9}},
		{input: " 23:59 ", want: Clock{Hour: 23, Minute: 59}},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "9:00", wantErr: true},
		{input: "noon", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ParseClock(%q) error = %v, want ErrValidation", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) unexpected error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseClock(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestClockNextOccurrence(t *testing.T) {
	t.Parallel()

	clock := Clock{Hour: 9}

	before := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)
	if got, want := clock.NextOccurrence(before, time.UTC), time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextOccurrence() before = %v, want %v", got, want)
	}

	exact := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if got := clock.NextOccurrence(exact, time.UTC); !got.Equal(exact) {
		t.Fatalf("NextOccurrence() exact = %v, want %v", got, exact)
	}

	after := time.Date(2026, 3, 10, 9, 0, 1, 0, time.UTC)
	if got, want := clock.NextOccurrence(after, time.UTC), time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("NextOccurrence() after = %v, want %v", got, want)
	}
}

func TestClockNextOccurrenceInLocation(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	// 07:00 UTC is 10:00 in Istanbul, so 09:00 local has already passed.
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	got := Clock{Hour: 9}.NextOccurrence(now, loc)
	want := time.Date(2026, 3, 11, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextOccurrence() = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Fatalf("location = %v, want %v", got.Location(), loc)
	}
}
