package models

// AuditLog records who performed a privileged ledger operation, on what, and
// with what changes. Entries are append-only.
type AuditLog struct {
	Base
	Caller       string `gorm:"not null" json:"caller"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   uint   `json:"resource_id"`
	Changes      string `json:"changes"` // JSON-encoded field deltas
}
