package usage

import (
	"time"
)

// Record is one metered usage sample. UserEmail is snapshotted so exports
// stay readable after account changes.
type Record struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"userId" gorm:"index"`
	UserEmail  string    `json:"userEmail"`
	Metric     string    `json:"metric" gorm:"index"`
	Quantity   int64     `json:"quantity"`
	RecordedAt time.Time `json:"recordedAt" gorm:"index"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName implements schema.Tabler
func (Record) TableName() string {
	return "usage_records"
}

// MetricTotal is the aggregate of one metric over a window
type MetricTotal struct {
	Metric string `json:"metric"`
	Total  int64  `json:"total"`
}
