package dashboard

import "time"

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
	JobStatusPartial = "partial"
)

// RefreshParams 描述一次行情刷新请求。Start/End 为 YYYY-MM-DD，
// 留空用默认区间；Force 跳过缓存读。
type RefreshParams struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Force bool   `json:"force"`
}

// RefreshJob 用于在内存中跟踪刷新进度。
type RefreshJob struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Params    RefreshParams `json:"params"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Message   string        `json:"message"`
	Warnings  []string      `json:"warnings"`
	Missing   []string      `json:"missing"`
}

func (j *RefreshJob) copy() RefreshJob {
	if j == nil {
		return RefreshJob{}
	}
	out := *j
	out.Warnings = append([]string{}, j.Warnings...)
	out.Missing = append([]string{}, j.Missing...)
	return out
}
