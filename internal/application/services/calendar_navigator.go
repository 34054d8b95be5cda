package services

import (
	"fmt"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
)

// CalendarNavigator produces the month grid and moves between months
type CalendarNavigator struct {
	session   *BookingSession
	selector  *SlotSelector
	clock     Clock
	displayed entities.YearMonth
}

// NewCalendarNavigator opens on the month containing today
func NewCalendarNavigator(session *BookingSession, selector *SlotSelector, clock Clock) *CalendarNavigator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CalendarNavigator{
		session:   session,
		selector:  selector,
		clock:     clock,
		displayed: entities.DateOf(clock.Now()).YearMonth(),
	}
}

// DisplayedMonth returns the month on screen
func (n *CalendarNavigator) DisplayedMonth() entities.YearMonth {
	return n.displayed
}

// Today returns the current date according to the injected clock
func (n *CalendarNavigator) Today() entities.CalendarDate {
	return entities.DateOf(n.clock.Now())
}

// DaysInDisplayedMonth returns the grid: Monday-first leading blanks, then one
// cell per day. Availability is evaluated for the session's current location.
func (n *CalendarNavigator) DaysInDisplayedMonth() []entities.CalendarDay {
	today := n.Today()
	sel := n.session.Selection()
	first := n.displayed.FirstDay()

	// time.Weekday is Sunday=0; shift so Monday=0
	offset := (int(first.Weekday()) + 6) % 7
	total := n.displayed.DaysIn()

	days := make([]entities.CalendarDay, 0, offset+total)
	for i := 0; i < offset; i++ {
		days = append(days, entities.CalendarDay{Blank: true})
	}
	for d := 1; d <= total; d++ {
		date := entities.CalendarDate{Year: n.displayed.Year, Month: n.displayed.Month, Day: d}
		days = append(days, entities.CalendarDay{
			Date:            date,
			IsPast:          date.Before(today),
			IsToday:         date == today,
			HasAvailability: sel.HasLocation() && n.session.Store().HasAvailability(sel.LocationID, date),
			IsSelected:      sel.HasDate() && sel.Date == date,
		})
	}
	return days
}

// AdvanceMonth moves one month back (-1) or forward (+1) and clears the
// selected date and slot. Any other direction is a caller bug and panics.
func (n *CalendarNavigator) AdvanceMonth(direction int) error {
	if direction != -1 && direction != 1 {
		panic(fmt.Sprintf("services: AdvanceMonth direction must be -1 or +1, got %d", direction))
	}
	if err := n.session.checkActive(); err != nil {
		return err
	}
	n.displayed = n.displayed.AddMonths(direction)
	n.session.ClearDate()
	return nil
}

// ShowMonth jumps to month without touching the selection; used when a
// saved session is restored
func (n *CalendarNavigator) ShowMonth(month entities.YearMonth) {
	if month.Month < time.January || month.Month > time.December {
		return
	}
	n.displayed = month
}

// SelectDay selects date if it is not in the past. Past days are disabled, so
// selecting one is a no-op that returns false.
func (n *CalendarNavigator) SelectDay(date entities.CalendarDate) (bool, error) {
	if date.Before(n.Today()) {
		return false, nil
	}
	if err := n.selector.SelectDate(date); err != nil {
		return false, err
	}
	return true, nil
}
