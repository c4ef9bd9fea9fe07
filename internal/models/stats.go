package models

// DailyStats is consumed read-only from the stats endpoint. The client never
// computes any of these figures itself.
type DailyStats struct {
	Date              string               `json:"date"`
	PatientsTotal     int                  `json:"patients_total"`
	PatientsFinished  int                  `json:"patients_finished"`
	PatientsWaiting   int                  `json:"patients_waiting"`
	PatientsInConsult int                  `json:"patients_in_consultation"`
	WaitMeanMin       float64              `json:"wait_mean_min"`
	WaitMedianMin     float64              `json:"wait_median_min"`
	Distribution      []WaitBucket         `json:"distribution,omitempty"`
	ProviderTurnover  []ProviderMeanMinute `json:"provider_turnover,omitempty"`
}

type WaitBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

type ProviderMeanMinute struct {
	ProviderID   string  `json:"provider_id"`
	ProviderName string  `json:"provider_name"`
	MeanMin      float64 `json:"mean_min"`
}
