package model

import "time"

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

var alertDays = map[string]int{
	AlertSixMonths:  180,
	AlertOneYear:    365,
	AlertTwoYears:   730,
	AlertThreeYears: 1095,
}

// IsAlertPeriod reports whether p is a known alert period.
func IsAlertPeriod(p string) bool {
	_, ok := alertDays[p]
	return ok
}

// NextInspectionDate is the end of intervention plus the alert period, or ""
// when either is missing or invalid.
func NextInspectionDate(interventionEnd, alertPeriod string) string {
	days, ok := alertDays[alertPeriod]
	if !ok || interventionEnd == "" {
		return ""
	}
	end, err := time.Parse(DateLayout, interventionEnd)
	if err != nil {
		return ""
	}
	return end.AddDate(0, 0, days).Format(DateLayout)
}
