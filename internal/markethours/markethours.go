// Package markethours knows the US equity session calendar: pre-market,
// regular and after-hours windows in Eastern time, weekends and NYSE
// holidays closed.
package markethours

import (
	"time"

	"papertrade-enginev1/internal/model"
)

// Eastern is the US market time zone. America/New_York tracks DST; the
// fixed-offset fallback only applies when the zone database is missing.
// Assigned in a var initializer (not init) so it is ready before the
// holiday table in holidays.go is built during package init.
var Eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	return loc
}()

// Session windows in Eastern time.
const (
	PreMarketOpenHour = 4

	OpenHour   = 9
	OpenMinute = 30

	CloseHour   = 16
	CloseMinute = 0

	AfterHoursCloseHour = 20
)

// Session labels.
const (
	SessionPreMarket  = "pre_market"
	SessionRegular    = "regular"
	SessionAfterHours = "after_hours"
	SessionClosed     = "closed"
)

// Session returns the session label for t.
func Session(t time.Time) string {
	et := t.In(Eastern)
	if !IsTradingDay(et) {
		return SessionClosed
	}
	hm := et.Hour()*60 + et.Minute()
	switch {
	case hm >= PreMarketOpenHour*60 && hm < OpenHour*60+OpenMinute:
		return SessionPreMarket
	case hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute:
		return SessionRegular
	case hm >= CloseHour*60+CloseMinute && hm < AfterHoursCloseHour*60:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// IsRegularOpen returns true if t falls within the regular trading session
// (9:30 AM – 4:00 PM ET, Mon–Fri, excluding holidays). Market orders are
// only accepted while this is true.
func IsRegularOpen(t time.Time) bool {
	return Session(t) == SessionRegular
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(Eastern).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	et := t.In(Eastern)
	return IsWeekday(et) && !IsHoliday(et)
}

// NextOpen returns the next regular-session open (9:30 AM ET on the next
// trading day). If t is before today's open on a trading day, returns
// today's open.
func NextOpen(t time.Time) time.Time {
	et := t.In(Eastern)

	todayOpen := time.Date(et.Year(), et.Month(), et.Day(), OpenHour, OpenMinute, 0, 0, Eastern)
	if et.Before(todayOpen) && IsTradingDay(et) {
		return todayOpen
	}

	d := et.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // max 10 days ahead (holidays + weekends)
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, Eastern)
		}
		d = d.AddDate(0, 0, 1)
	}
	// Fallback: next day
	return time.Date(et.Year(), et.Month(), et.Day()+1, OpenHour, OpenMinute, 0, 0, Eastern)
}

// NextClose returns the next regular-session close (4:00 PM ET). If the
// regular session is currently open, that is today's close; otherwise it is
// the close following the next open.
func NextClose(t time.Time) time.Time {
	et := t.In(Eastern)
	todayClose := time.Date(et.Year(), et.Month(), et.Day(), CloseHour, CloseMinute, 0, 0, Eastern)
	if IsTradingDay(et) && et.Before(todayClose) {
		return todayClose
	}
	open := NextOpen(et)
	return time.Date(open.Year(), open.Month(), open.Day(), CloseHour, CloseMinute, 0, 0, Eastern)
}

// Snapshot returns the session state exposed to callers.
func Snapshot(t time.Time) model.MarketSession {
	return model.MarketSession{
		IsOpen:    IsRegularOpen(t),
		Status:    Session(t),
		NextOpen:  NextOpen(t),
		NextClose: NextClose(t),
	}
}
