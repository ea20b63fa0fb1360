// Package calendar lays out the current year as a contact heatmap: one cell
// per day, grouped by month, coloured by how busy the day was relative to
// the busiest day of the year.
package calendar

import "time"

// Level is the intensity band of a calendar cell.
type Level int

const (
	LevelNone Level = iota
	Level1
	Level2
	Level3
	Level4
	Level5
	LevelFuture
)

var levelNames = [...]string{"none", "l1", "l2", "l3", "l4", "l5", "future"}

// String returns the short name used as the cell's CSS class.
func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "none"
	}
	return levelNames[l]
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Day is a single calendar cell.
type Day struct {
	Date   time.Time `json:"-"`
	Key    string    `json:"date"`
	Number int       `json:"day"`
	Count  int       `json:"count"`
	Level  Level     `json:"level"`
	Today  bool      `json:"today,omitempty"`
	Future bool      `json:"future,omitempty"`
}

// Month groups the days of one month. Offset is the weekday of the first
// day (Sunday = 0), i.e. the number of blank cells before it in a grid that
// starts on Sunday.
type Month struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Days   []Day  `json:"days"`
}

// Blanks returns Offset as a slice so templates can range over it.
func (m Month) Blanks() []struct{} { return make([]struct{}, m.Offset) }

// Year is the full heatmap for one calendar year.
type Year struct {
	Year   int     `json:"year"`
	Max    int     `json:"max"`
	Months []Month `json:"months"`
}

// Build lays out the calendar year containing now. byDate maps YYYY-MM-DD
// keys to contact counts; missing days count zero. Days are enumerated in
// now's location and days after today are marked future regardless of
// their count.
func Build(byDate map[string]int, now time.Time) Year {
	loc := now.Location()
	year := now.Year()
	todayKey := now.Format(time.DateOnly)

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)

	peak := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if n := byDate[d.Format(time.DateOnly)]; n > peak {
			peak = n
		}
	}

	out := Year{Year: year, Max: peak, Months: make([]Month, 0, 12)}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Day() == 1 {
			out.Months = append(out.Months, Month{
				Name:   d.Format("Jan 2006"),
				Offset: int(d.Weekday()),
			})
		}
		key := d.Format(time.DateOnly)
		count := byDate[key]
		cell := Day{
			Date:   d,
			Key:    key,
			Number: d.Day(),
			Count:  count,
			Today:  key == todayKey,
			Future: key > todayKey,
		}
		if cell.Future {
			cell.Level = LevelFuture
		} else {
			cell.Level = Intensity(count, peak)
		}
		m := &out.Months[len(out.Months)-1]
		m.Days = append(m.Days, cell)
	}
	return out
}

// Intensity places count into one of five bands by its ratio to peak. A
// zero count is LevelNone; a peak below one is treated as one.
func Intensity(count, peak int) Level {
	if count <= 0 {
		return LevelNone
	}
	if peak < 1 {
		peak = 1
	}
	r := float64(count) / float64(peak)
	switch {
	case r < 0.2:
		return Level1
	case r < 0.4:
		return Level2
	case r < 0.6:
		return Level3
	case r < 0.8:
		return Level4
	default:
		return Level5
	}
}
