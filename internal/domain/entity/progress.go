package entity

import "time"

// StepStatus 进度步骤状态
type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusError   StepStatus = "error"
)

// ProgressStep 一条进度快照。
// 同一次运行内 Current 单调不减，且不超过 Total。
type ProgressStep struct {
	Step    string     `json:"step"`
	Current int        `json:"current"`
	Total   int        `json:"total"`
	Status  StepStatus `json:"status"`
	Detail  string     `json:"detail,omitempty"`
	At      time.Time  `json:"at"`
}

// Percent 进度百分比 (0-100)
func (p ProgressStep) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := p.Current * 100 / p.Total
	if pct > 100 {
		pct = 100
	}
	return pct
}
