package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cycle arithmetic works on days of month only. Day 31 is always followed by
// day 1, whatever the real length of the month is.

type CycleDays struct {
	StartDay *int `json:"cycleStartDay"`
	EndDay   *int `json:"cycleEndDay"`
}

type BalanceCards struct {
	CurrentBalance  int64 `json:"currentBalance"`
	ExpectedBalance int64 `json:"expectedBalance"`
	DeficitExcess   int64 `json:"deficitExcess"`
}

// CalculateCycleDays derives the cycle window from the items' due days. The
// cycle starts on the earliest income (or the earliest payment when there is
// no income) and ends the day after the latest payment.
func CalculateCycleDays(items []Item) CycleDays {
	if len(items) == 0 {
		return CycleDays{}
	}

	minIncome, minPayment, maxPayment := 0, 0, 0
	for _, item := range items {
		day := item.DayOfMonth
		if item.Type.IsIncome() {
			if minIncome == 0 || day < minIncome {
				minIncome = day
			}
			continue
		}
		if minPayment == 0 || day < minPayment {
			minPayment = day
		}
		if day > maxPayment {
			maxPayment = day
		}
	}

	start := minIncome
	if start == 0 {
		start = minPayment
	}

	end := start
	if maxPayment > 0 {
		end = nextDay(maxPayment)
	}

	return CycleDays{StartDay: &start, EndDay: &end}
}

func nextDay(day int) int {
	if day >= 31 {
		return 1
	}
	return day + 1
}

// CalculateBalanceCards projects the balance forward with the unpaid items and
// reports the cycle surplus or deficit over every item.
func CalculateBalanceCards(balance int64, items []Item) BalanceCards {
	var unpaidIncome, unpaidPayments, totalIncome, totalPayments int64
	for _, item := range items {
		if item.Type.IsIncome() {
			totalIncome += item.Amount
			if !item.IsPaid {
				unpaidIncome += item.Amount
			}
			continue
		}
		totalPayments += item.Amount
		if !item.IsPaid {
			unpaidPayments += item.Amount
		}
	}

	return BalanceCards{
		CurrentBalance:  balance,
		ExpectedBalance: balance + unpaidIncome - unpaidPayments,
		DeficitExcess:   totalIncome - totalPayments,
	}
}

// CycleWraps reports whether the cycle crosses a month boundary.
func CycleWraps(startDay, endDay int) bool {
	return endDay <= startDay
}

// BuildCycleLabel renders the cycle the reference date belongs to, for
// example "Mar 5 - Mar 20" or "Dec 25 - Jan 16".
func BuildCycleLabel(startDay, endDay int, ref time.Time) string {
	month := ref.Month()
	day := ref.Day()

	var advance bool
	if CycleWraps(startDay, endDay) {
		advance = day > endDay && day < startDay
	} else {
		advance = day > endDay
	}
	if advance {
		month = nextMonth(month)
	}

	if endDay > startDay {
		return fmt.Sprintf("%s %d - %s %d", shortMonth(month), startDay, shortMonth(month), endDay)
	}
	return fmt.Sprintf("%s %d - %s %d", shortMonth(month), startDay, shortMonth(nextMonth(month)), endDay)
}

// IsPastCycleEnd reports whether today has reached the end boundary of the
// cycle, using the same wrap-aware comparison as BuildCycleLabel.
func IsPastCycleEnd(startDay, endDay int, today time.Time) bool {
	day := today.Day()
	if CycleWraps(startDay, endDay) {
		return day >= endDay && day < startDay
	}
	return day >= endDay
}

func nextMonth(m time.Month) time.Month {
	if m == time.December {
		return time.January
	}
	return m + 1
}

func shortMonth(m time.Month) string {
	return m.String()[:3]
}

// ArchiveLabel is the label stamped on a completed cycle archived on date.
func ArchiveLabel(date time.Time) string {
	return date.Format("2006-01")
}

// PrepareArchive decides whether the workspace's current cycle is complete and,
// if so, returns the snapshot to persist. It does not touch the balance.
func PrepareArchive(ws *Workspace, items []Item, now time.Time) (*CompletedCycle, bool) {
	if !ws.HasCycle() || len(items) == 0 {
		return nil, false
	}

	for _, item := range items {
		if !item.IsPaid {
			return nil, false
		}
	}

	if !IsPastCycleEnd(*ws.CycleStartDay, *ws.CycleEndDay, now) {
		return nil, false
	}

	snapshot := make([]ItemSnapshot, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, ItemSnapshot{
			ID:         item.ID,
			Type:       item.Type,
			Label:      item.Label,
			Amount:     item.Amount,
			DayOfMonth: item.DayOfMonth,
			IsPaid:     item.IsPaid,
		})
	}

	return &CompletedCycle{
		ID:            uuid.New(),
		WorkspaceID:   ws.ID,
		CycleLabel:    ArchiveLabel(now),
		FinalBalance:  ws.Balance,
		ItemsSnapshot: snapshot,
		CompletedAt:   now,
	}, true
}
