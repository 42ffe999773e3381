package calendar

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jghoshh/ascent/models"
)

// Status is the day-level completion state shown on the month calendar.
type Status string

const (
	StatusNone    Status = "none"
	StatusPartial Status = "partial"
	StatusAll     Status = "all"
)

// DayStatus pairs an ISO date (YYYY-MM-DD) with its completion status.
type DayStatus struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

const isoDate = "2006-01-02"

// MonthRange returns the first and last ISO dates of the given month and the
// number of days it spans.
func MonthRange(year int, month time.Month) (startDate, endDate string, totalDays int) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(isoDate), end.Format(isoDate), end.Day()
}

// BuildMonthCalendar computes one DayStatus per day of the given month. For
// each day it counts how many of activeTaskIDs have a completed checkin on
// that date; the day is "all" when that count covers every active task (and
// there is at least one), "partial" when some but not all are covered, and
// "none" otherwise. With zero active tasks every day is "none". Checkins
// outside the month or for tasks not in activeTaskIDs are ignored.
func BuildMonthCalendar(activeTaskIDs []primitive.ObjectID, checkins []models.DailyTaskCheckin, year int, month time.Month) []DayStatus {
	startDate, endDate, totalDays := MonthRange(year, month)

	active := make(map[primitive.ObjectID]struct{}, len(activeTaskIDs))
	for _, id := range activeTaskIDs {
		active[id] = struct{}{}
	}

	completedByDate := make(map[string]int)
	for _, checkin := range checkins {
		if !checkin.Completed {
			continue
		}
		if checkin.CheckinDate < startDate || checkin.CheckinDate > endDate {
			continue
		}
		if _, ok := active[checkin.TaskID]; !ok {
			continue
		}
		completedByDate[checkin.CheckinDate]++
	}

	days := make([]DayStatus, 0, totalDays)
	for day := 1; day <= totalDays; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(isoDate)
		count := completedByDate[date]

		status := StatusNone
		if count > 0 && count < len(activeTaskIDs) {
			status = StatusPartial
		}
		if len(activeTaskIDs) > 0 && count >= len(activeTaskIDs) {
			status = StatusAll
		}

		days = append(days, DayStatus{Date: date, Status: status})
	}
	return days
}
