// Package delivery проверяет, можно ли доставить алкоголь в заданный момент.
package delivery

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

type Decision struct {
	Allowed bool
	Reason  string
}

// Публичные праздники ЮАР, включая перенесённые с воскресенья выходные.
var southAfricanHolidays = map[string]string{
	"2024-01-01": "New Year's Day",
	"2024-03-21": "Human Rights Day",
	"2024-03-29": "Good Friday",
	"2024-04-01": "Family Day",
	"2024-04-27": "Freedom Day",
	"2024-05-01": "Workers' Day",
	"2024-06-16": "Youth Day",
	"2024-06-17": "Youth Day (observed)",
	"2024-08-09": "National Women's Day",
	"2024-09-24": "Heritage Day",
	"2024-12-16": "Day of Reconciliation",
	"2024-12-25": "Christmas Day",
	"2024-12-26": "Day of Goodwill",

	"2025-01-01": "New Year's Day",
	"2025-03-21": "Human Rights Day",
	"2025-04-18": "Good Friday",
	"2025-04-21": "Family Day",
	"2025-04-27": "Freedom Day",
	"2025-04-28": "Freedom Day (observed)",
	"2025-05-01": "Workers' Day",
	"2025-06-16": "Youth Day",
	"2025-08-09": "National Women's Day",
	"2025-09-24": "Heritage Day",
	"2025-12-16": "Day of Reconciliation",
	"2025-12-25": "Christmas Day",
	"2025-12-26": "Day of Goodwill",

	"2026-01-01": "New Year's Day",
	"2026-03-21": "Human Rights Day",
	"2026-04-03": "Good Friday",
	"2026-04-06": "Family Day",
	"2026-04-27": "Freedom Day",
	"2026-05-01": "Workers' Day",
	"2026-06-16": "Youth Day",
	"2026-08-09": "National Women's Day",
	"2026-08-10": "National Women's Day (observed)",
	"2026-09-24": "Heritage Day",
	"2026-12-16": "Day of Reconciliation",
	"2026-12-25": "Christmas Day",
	"2026-12-26": "Day of Goodwill",

	"2027-01-01": "New Year's Day",
	"2027-03-21": "Human Rights Day",
	"2027-03-22": "Human Rights Day (observed)",
	"2027-03-26": "Good Friday",
	"2027-03-29": "Family Day",
	"2027-04-27": "Freedom Day",
	"2027-05-01": "Workers' Day",
	"2027-06-16": "Youth Day",
	"2027-08-09": "National Women's Day",
	"2027-09-24": "Heritage Day",
	"2027-12-16": "Day of Reconciliation",
	"2027-12-25": "Christmas Day",
	"2027-12-26": "Day of Goodwill",
	"2027-12-27": "Day of Goodwill (observed)",
}

type StaticCalendar struct {
	loc       *time.Location
	fromHour  int
	untilHour int
	holidays  map[string]string
}

// NewStaticCalendar: доставка пн-сб с fromHour до untilHour по местному времени tz.
func NewStaticCalendar(tz string, fromHour, untilHour int) (*StaticCalendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load delivery timezone %q: %w", tz, err)
	}
	if fromHour < 0 || untilHour > 24 || fromHour >= untilHour {
		return nil, fmt.Errorf("invalid delivery hours %d-%d", fromHour, untilHour)
	}
	return &StaticCalendar{
		loc:       loc,
		fromHour:  fromHour,
		untilHour: untilHour,
		holidays:  southAfricanHolidays,
	}, nil
}

func (c *StaticCalendar) CanDeliverOnDate(t time.Time) Decision {
	local := t.In(c.loc)
	if local.Weekday() == time.Sunday {
		return Decision{Reason: "alcohol delivery is not permitted on Sundays in South Africa"}
	}
	if name, ok := c.holidays[local.Format(time.DateOnly)]; ok {
		return Decision{Reason: fmt.Sprintf("alcohol delivery is not permitted on public holidays (%s)", name)}
	}
	return Decision{Allowed: true}
}

// CanDeliver проверяет дату и час доставки.
func (c *StaticCalendar) CanDeliver(t time.Time) Decision {
	if d := c.CanDeliverOnDate(t); !d.Allowed {
		return d
	}
	hour := t.In(c.loc).Hour()
	if hour < c.fromHour || hour >= c.untilHour {
		return Decision{Reason: fmt.Sprintf("delivery hours are %02d:00 - %02d:00 Monday to Saturday", c.fromHour, c.untilHour)}
	}
	return Decision{Allowed: true}
}

// NextAvailableDate — ближайший день после from, в который разрешена доставка.
func (c *StaticCalendar) NextAvailableDate(from time.Time) time.Time {
	local := from.In(c.loc)
	d := time.Date(local.Year(), local.Month(), local.Day(), c.fromHour, 0, 0, 0, c.loc).AddDate(0, 0, 1)
	for i := 0; i < 14; i++ {
		if c.CanDeliverOnDate(d).Allowed {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return d
}
