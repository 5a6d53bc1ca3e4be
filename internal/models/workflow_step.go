package models

import "time"

// WorkflowStep records one completed step of a coordinator workflow, keyed
// by (asset_id, step) so re-running a workflow skips what already happened.
type WorkflowStep struct {
	Base
	AssetID     uint       `gorm:"not null;uniqueIndex:idx_wf_asset_step" json:"asset_id"`
	Step        string     `gorm:"not null;uniqueIndex:idx_wf_asset_step" json:"step"`
	RunID       string     `gorm:"not null" json:"run_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
