package models

import (
	"fmt"
	"strconv"
)

const GlobalCounterName = "GLOBAL"

// FormatLetterNumber renders {cat}-{global}.{daily}/{division}/H.{d}.{daily}/{MM}/{YYYY};
// the day is unpadded, the month two digits.
//
//	B-588.3/TU.040/H.15.3/07/2025
func FormatLetterNumber(categoryCode string, globalSerial int64, dailySerial int, divisionCode string, issuedOn Date) string {
	return fmt.Sprintf("%s-%d.%d/%s/H.%d.%d/%02d/%04d",
		categoryCode,
		globalSerial,
		dailySerial,
		divisionCode,
		issuedOn.Day(),
		dailySerial,
		int(issuedOn.Month()),
		issuedOn.Year(),
	)
}

// ScopeKey names the daily counter for (category, division, day).
// The division is keyed by its immutable id so a renamed code keeps its counters.
func ScopeKey(categoryCode string, divisionId int, issuedOn Date) string {
	return categoryCode + "|" + strconv.Itoa(divisionId) + "|" + issuedOn.String()
}
