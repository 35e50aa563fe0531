// Package cadence implements the 30-day outreach loop: a fixed touch
// schedule that every active lead walks through, with SMS touches early
// in the loop and call touches late. The schedule ships embedded; day
// positions are 1-based and computed in UTC.
package cadence

import (
	_ "embed"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nextier/copilot-engine/internal/model"
)

//go:embed cadence.yaml
var rawSchedule []byte

// TouchType is the channel for a scheduled touch.
type TouchType string

const (
	TouchSMS     TouchType = "sms"
	TouchCall    TouchType = "call"
	TouchNurture TouchType = "nurture"
)

// Schedule is the loop definition: which days get a touch and when the
// channel switches from SMS to calls.
type Schedule struct {
	Version       string `yaml:"version"`
	LifecycleDays int    `yaml:"lifecycle_days"`
	CallFromDay   int    `yaml:"call_from_day"`
	TouchDays     []int  `yaml:"touch_days"`
}

// Load parses and validates the embedded schedule.
func Load() (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(rawSchedule, &s); err != nil {
		return nil, eris.Wrap(err, "cadence: parse schedule")
	}
	if s.LifecycleDays <= 0 {
		return nil, eris.New("cadence: lifecycle_days must be positive")
	}
	if len(s.TouchDays) == 0 {
		return nil, eris.New("cadence: schedule has no touch days")
	}
	if !sort.IntsAreSorted(s.TouchDays) {
		return nil, eris.New("cadence: touch days must be ascending")
	}
	for _, d := range s.TouchDays {
		if d < 1 || d > s.LifecycleDays {
			return nil, eris.Errorf("cadence: touch day %d outside lifecycle", d)
		}
	}
	return &s, nil
}

// MustLoad is Load for setup paths; it panics on error.
func MustLoad() *Schedule {
	s, err := Load()
	if err != nil {
		panic(err)
	}
	return s
}

// Touch is one scheduled contact in the loop.
type Touch struct {
	Day  int       `json:"day"`
	Type TouchType `json:"type"`
}

// State is a lead's full cadence position at a point in time.
type State struct {
	CurrentDay  int        `json:"current_day"`
	Completed   bool       `json:"completed"`
	NextTouch   Touch      `json:"next_touch"`
	NextTouchAt *time.Time `json:"next_touch_at,omitempty"`
	TouchesSent int        `json:"touches_sent"`
	TouchesLeft int        `json:"touches_left"`
}

// CurrentDay converts a loop start date to a 1-based day position,
// clamped to the lifecycle. A start in the future counts as day 1.
func (s *Schedule) CurrentDay(loopStart, now time.Time) int {
	day := rawDay(loopStart, now)
	if day < 1 {
		return 1
	}
	if day > s.LifecycleDays {
		return s.LifecycleDays
	}
	return day
}

func rawDay(loopStart, now time.Time) int {
	return int(now.UTC().Sub(loopStart.UTC())/(24*time.Hour)) + 1
}

// NextTouch returns the first scheduled touch after the given day. When
// the schedule is exhausted the touch lands on the final lifecycle day
// as a nurture handoff.
func (s *Schedule) NextTouch(currentDay int) Touch {
	for _, d := range s.TouchDays {
		if d > currentDay {
			return Touch{Day: d, Type: s.TouchTypeFor(d)}
		}
	}
	return Touch{Day: s.LifecycleDays, Type: TouchNurture}
}

// TouchTypeFor resolves the channel for a touch day: nurture on the
// final day, calls from CallFromDay on, SMS before that.
func (s *Schedule) TouchTypeFor(day int) TouchType {
	switch {
	case day >= s.LifecycleDays:
		return TouchNurture
	case day >= s.CallFromDay:
		return TouchCall
	default:
		return TouchSMS
	}
}

// TouchDate is the calendar date of a touch day for a given loop start.
func (s *Schedule) TouchDate(loopStart time.Time, day int) time.Time {
	return loopStart.UTC().AddDate(0, 0, day-1)
}

// State computes a lead's cadence position. Leads without a recorded
// loop start fall back to their stored loop day.
func (s *Schedule) State(lead model.Lead, now time.Time) State {
	current := s.leadDay(lead, now)
	completed := current >= s.LifecycleDays
	if lead.LoopStartDate != nil {
		completed = rawDay(*lead.LoopStartDate, now) > s.LifecycleDays
	}

	st := State{
		CurrentDay:  current,
		Completed:   completed,
		NextTouch:   s.NextTouch(current),
		TouchesSent: lead.TouchCount,
	}
	for _, d := range s.TouchDays {
		if d > current {
			st.TouchesLeft++
		}
	}
	if lead.LoopStartDate != nil && !completed {
		at := s.TouchDate(*lead.LoopStartDate, st.NextTouch.Day)
		st.NextTouchAt = &at
	}
	return st
}

func (s *Schedule) leadDay(lead model.Lead, now time.Time) int {
	if lead.LoopStartDate != nil {
		return s.CurrentDay(*lead.LoopStartDate, now)
	}
	if lead.LoopDay < 1 {
		return 1
	}
	if lead.LoopDay > s.LifecycleDays {
		return s.LifecycleDays
	}
	return lead.LoopDay
}

// Advance moves a lead to its next touch position after a touch was
// sent. It returns the updated lead and does not mutate the input.
func (s *Schedule) Advance(lead model.Lead, now time.Time) model.Lead {
	next := s.NextTouch(s.leadDay(lead, now))

	lead.LoopDay = next.Day
	lead.TouchCount++
	touched := now.UTC()
	lead.LastTouchAt = &touched

	following := s.NextTouch(next.Day)
	if lead.LoopStartDate != nil && following.Day > next.Day {
		at := s.TouchDate(*lead.LoopStartDate, following.Day)
		lead.NextTouchAt = &at
	} else {
		lead.NextTouchAt = nil
	}
	return lead
}

// inactiveStages are stages the cadence never touches.
var inactiveStages = map[model.Stage]bool{
	model.StageNurture: true,
	model.StageWon:     true,
	model.StageLost:    true,
}

// DueForTouch filters leads whose next touch date has arrived. Leads in
// nurture, won, or lost are never due.
func (s *Schedule) DueForTouch(leads []model.Lead, now time.Time) []model.Lead {
	today := now.UTC().Truncate(24 * time.Hour)
	var due []model.Lead
	for _, l := range leads {
		if inactiveStages[l.Stage] || l.NextTouchAt == nil {
			continue
		}
		if !l.NextTouchAt.UTC().Truncate(24 * time.Hour).After(today) {
			due = append(due, l)
		}
	}
	return due
}

// PlanEntry groups leads sharing an upcoming touch day.
type PlanEntry struct {
	Day     int       `json:"day"`
	Type    TouchType `json:"type"`
	LeadIDs []string  `json:"lead_ids"`
}

// Plan groups active leads by their next touch day, ascending. Completed
// loops and inactive stages are excluded; zero leads yields an empty plan.
func (s *Schedule) Plan(leads []model.Lead, now time.Time) []PlanEntry {
	byDay := make(map[int]*PlanEntry)
	for _, l := range leads {
		if inactiveStages[l.Stage] {
			continue
		}
		st := s.State(l, now)
		if st.Completed {
			continue
		}
		e, ok := byDay[st.NextTouch.Day]
		if !ok {
			e = &PlanEntry{Day: st.NextTouch.Day, Type: st.NextTouch.Type}
			byDay[st.NextTouch.Day] = e
		}
		e.LeadIDs = append(e.LeadIDs, l.ID)
	}

	plan := make([]PlanEntry, 0, len(byDay))
	for _, e := range byDay {
		plan = append(plan, *e)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Day < plan[j].Day })
	return plan
}
