package cmd

import (
	"time"

	"riskBacktester/internal/utils"
)

func parseTime(s string) (time.Time, error) {
	return utils.ParseTimestamp(s)
}

func pct(v float64) float64 {
	return v * 100
}
