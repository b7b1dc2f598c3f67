package admin

import "time"

// Stats is the administrator dashboard summary.
type Stats struct {
	TotalPatients  int       `json:"total_patients"`
	TotalUsers     int       `json:"total_users"`
	PlansThisMonth int       `json:"plans_this_month"`
	MonthStart     time.Time `json:"month_start"`
}
