package markethours

import (
	"testing"
	"time"
)

// 2026-03-04 is a Wednesday with no holiday.
func et(hour, min int) time.Time {
	return time.Date(2026, 3, 4, hour, min, 0, 0, Eastern)
}

func TestSession_Windows(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{et(3, 59), SessionClosed},
		{et(4, 0), SessionPreMarket},
		{et(9, 29), SessionPreMarket},
		{et(9, 30), SessionRegular},
		{et(12, 0), SessionRegular},
		{et(15, 59), SessionRegular},
		{et(16, 0), SessionAfterHours},
		{et(19, 59), SessionAfterHours},
		{et(20, 0), SessionClosed},
		{et(23, 30), SessionClosed},
	}
	for _, c := range cases {
		if got := Session(c.at); got != c.want {
			t.Errorf("Session(%s) = %s, want %s", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestSession_WeekendAlwaysClosed(t *testing.T) {
	sat := time.Date(2026, 3, 7, 12, 0, 0, 0, Eastern)
	if got := Session(sat); got != SessionClosed {
		t.Errorf("Saturday noon: expected closed, got %s", got)
	}
	if IsRegularOpen(sat) {
		t.Error("Saturday should never be open")
	}
}

func TestSession_HolidayClosed(t *testing.T) {
	// Good Friday 2026 falls on a weekday
	goodFriday := time.Date(2026, 4, 3, 12, 0, 0, 0, Eastern)
	if got := Session(goodFriday); got != SessionClosed {
		t.Errorf("holiday: expected closed, got %s", got)
	}
}

func TestNextOpen(t *testing.T) {
	// Before today's open on a trading day: today 9:30
	next := NextOpen(et(8, 0))
	want := et(9, 30)
	if !next.Equal(want) {
		t.Errorf("NextOpen(8:00) = %v, want %v", next, want)
	}

	// After close: next trading day
	next = NextOpen(et(17, 0))
	want = time.Date(2026, 3, 5, 9, 30, 0, 0, Eastern)
	if !next.Equal(want) {
		t.Errorf("NextOpen(17:00) = %v, want %v", next, want)
	}

	// Friday evening skips the weekend
	fri := time.Date(2026, 3, 6, 18, 0, 0, 0, Eastern)
	next = NextOpen(fri)
	want = time.Date(2026, 3, 9, 9, 30, 0, 0, Eastern)
	if !next.Equal(want) {
		t.Errorf("NextOpen(Fri 18:00) = %v, want %v", next, want)
	}
}

func TestNextClose(t *testing.T) {
	// During regular session: today's 16:00
	next := NextClose(et(12, 0))
	want := et(16, 0)
	if !next.Equal(want) {
		t.Errorf("NextClose(12:00) = %v, want %v", next, want)
	}

	// After close: next trading day's 16:00
	next = NextClose(et(18, 0))
	want = time.Date(2026, 3, 5, 16, 0, 0, 0, Eastern)
	if !next.Equal(want) {
		t.Errorf("NextClose(18:00) = %v, want %v", next, want)
	}
}

func TestSnapshot(t *testing.T) {
	s := Snapshot(et(10, 0))
	if !s.IsOpen || s.Status != SessionRegular {
		t.Errorf("10:00 snapshot: %+v", s)
	}

	s = Snapshot(et(5, 0))
	if s.IsOpen {
		t.Error("pre-market must not report the regular session open")
	}
	if s.Status != SessionPreMarket {
		t.Errorf("expected pre_market, got %s", s.Status)
	}
}
