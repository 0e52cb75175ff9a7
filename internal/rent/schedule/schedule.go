// Package schedule computes which monthly rent records a tenancy owes and how
// an existing set of records must change when the tenancy terms change.
//
// Every function here is pure: the evaluation instant is always passed in and
// nothing touches storage. Dates are compared as civil dates; callers convert
// instants into the landlord's timezone before calling.
package schedule

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/rent/domain"
)

// Date truncates t to midnight UTC of its calendar day in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// DueDate returns the due date of billing period k (k >= 1) for a tenancy that
// started on start. The day-of-month of start is kept and clamped to the last
// day of shorter months.
func DueDate(start time.Time, k int) time.Time {
	start = Date(start)
	target := time.Date(start.Year(), start.Month()+time.Month(k), 1, 0, 0, 0, 0, time.UTC)
	day := start.Day()
	if last := daysIn(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}

// Horizon is the effective evaluation date for a tenancy: asOf, or the end
// date when the tenancy closed earlier.
func Horizon(asOf time.Time, endDate *time.Time) time.Time {
	horizon := Date(asOf)
	if endDate != nil && !endDate.IsZero() {
		if end := Date(*endDate); end.Before(horizon) {
			return end
		}
	}
	return horizon
}

func validate(tenancyID snowflake.ID, startDate time.Time, monthlyRent decimal.Decimal, asOf time.Time) error {
	if tenancyID == 0 {
		return domain.ErrInvalidTenancy
	}
	if startDate.IsZero() {
		return domain.ErrInvalidStartDate
	}
	if monthlyRent.IsNegative() {
		return domain.ErrInvalidMonthlyRent
	}
	if asOf.IsZero() {
		return domain.ErrInvalidAsOf
	}
	return nil
}

// GenerateInitialSchedule returns one pending draft per completed billing
// period whose due date is on or before asOf, in month order. The month the
// tenancy starts in is billed only once it completes.
func GenerateInitialSchedule(tenancyID snowflake.ID, startDate time.Time, monthlyRent decimal.Decimal, asOf time.Time) ([]domain.Draft, error) {
	if err := validate(tenancyID, startDate, monthlyRent, asOf); err != nil {
		return nil, err
	}

	cutoff := Date(asOf)
	drafts := []domain.Draft{}
	for k := 1; ; k++ {
		due := DueDate(startDate, k)
		if due.After(cutoff) {
			break
		}
		drafts = append(drafts, domain.Draft{
			TenancyID:   tenancyID,
			PeriodStart: MonthStart(due),
			DueDate:     due,
			AmountDue:   monthlyRent,
			Status:      domain.StatusPending,
		})
	}
	return drafts, nil
}

// ReconcileSchedule plans how existing records must change for new terms.
//
// Paid and partial records are never touched and their periods are never
// redrafted. A pending record survives only when it already equals the
// recomputed draft for its period; every other pending record is deleted and
// the recomputed draft inserted instead. Applying the plan and reconciling
// again with the same terms yields an empty plan.
func ReconcileSchedule(tenancyID snowflake.ID, newStartDate time.Time, newMonthlyRent decimal.Decimal, asOf time.Time, existing []domain.RentRecord) (domain.Plan, error) {
	drafts, err := GenerateInitialSchedule(tenancyID, newStartDate, newMonthlyRent, asOf)
	if err != nil {
		return domain.Plan{}, err
	}

	wanted := make(map[time.Time]domain.Draft, len(drafts))
	for _, draft := range drafts {
		wanted[draft.PeriodStart] = draft
	}

	covered := make(map[time.Time]struct{}, len(existing))
	for _, record := range existing {
		if record.TenancyID != tenancyID || !record.Status.Protected() {
			continue
		}
		covered[Date(record.PeriodStart)] = struct{}{}
	}

	plan := domain.Plan{ToDelete: []domain.RecordKey{}, ToInsert: []domain.Draft{}}
	for _, record := range existing {
		if record.TenancyID != tenancyID || record.Status.Protected() {
			continue
		}
		period := Date(record.PeriodStart)
		_, alreadyCovered := covered[period]
		draft, ok := wanted[period]
		if ok && !alreadyCovered && matches(record, draft) {
			covered[period] = struct{}{}
			continue
		}
		plan.ToDelete = append(plan.ToDelete, domain.RecordKey{TenancyID: tenancyID, PeriodStart: period})
	}

	for _, draft := range drafts {
		if _, ok := covered[draft.PeriodStart]; ok {
			continue
		}
		plan.ToInsert = append(plan.ToInsert, draft)
	}
	return plan, nil
}

// MissingPeriods returns the drafts due by asOf that have no record at all.
// Existing records are left alone whatever their amount, which makes it safe
// to run repeatedly as a catch-up.
func MissingPeriods(tenancyID snowflake.ID, startDate time.Time, monthlyRent decimal.Decimal, asOf time.Time, existing []domain.RentRecord) ([]domain.Draft, error) {
	drafts, err := GenerateInitialSchedule(tenancyID, startDate, monthlyRent, asOf)
	if err != nil {
		return nil, err
	}

	present := make(map[time.Time]struct{}, len(existing))
	for _, record := range existing {
		if record.TenancyID != tenancyID {
			continue
		}
		present[Date(record.PeriodStart)] = struct{}{}
	}

	missing := []domain.Draft{}
	for _, draft := range drafts {
		if _, ok := present[draft.PeriodStart]; ok {
			continue
		}
		missing = append(missing, draft)
	}
	return missing, nil
}

func matches(record domain.RentRecord, draft domain.Draft) bool {
	return record.Status == domain.StatusPending &&
		record.AmountDue.Equal(draft.AmountDue) &&
		record.PaidDate == nil &&
		record.Remarks == draft.Remarks
}
