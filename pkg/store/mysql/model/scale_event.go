package model

import "time"

// ScaleEvent MySQL model for the scale_events table
type ScaleEvent struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID          string          `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex:idx_event_id_unique" json:"event_id"`
	CycleID          string          `gorm:"column:cycle_id;type:varchar(255);not null;index:idx_cycle_id" json:"cycle_id"`
	Timestamp        time.Time       `gorm:"column:timestamp;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_timestamp" json:"timestamp"`
	Action           string          `gorm:"column:action;type:varchar(50);not null;index:idx_action" json:"action"`
	Outcome          string          `gorm:"column:outcome;type:varchar(20);not null" json:"outcome"`
	NodeGroup        string          `gorm:"column:node_group;type:varchar(255);not null;index:idx_node_group" json:"node_group"`
	Nodes            JSONStringArray `gorm:"column:nodes;type:json" json:"nodes"`
	NodeCount        int             `gorm:"column:node_count;type:int;not null;default:0" json:"node_count"`
	Reason           string          `gorm:"column:reason;type:text;not null" json:"reason"`
	Detail           string          `gorm:"column:detail;type:text" json:"detail"`
	OutstandingCalls int64           `gorm:"column:outstanding_calls;type:bigint;not null;default:0" json:"outstanding_calls"`
	GridMinutes      float64         `gorm:"column:grid_minutes;type:double;not null;default:0" json:"grid_minutes"`
	QueuedJobs       int64           `gorm:"column:queued_jobs;type:bigint;not null;default:0" json:"queued_jobs"`
}

// TableName specifies the table name for ScaleEvent
func (ScaleEvent) TableName() string {
	return "scale_events"
}
