package job

import "time"

// Job statuses. SCHEDULED → GENERATING → {PUBLISHED | REVIEW | FAILED}, plus
// the FAILED → SCHEDULED retry edge.
const (
	StatusScheduled  = "SCHEDULED"
	StatusGenerating = "GENERATING"
	StatusPublished  = "PUBLISHED"
	StatusReview     = "REVIEW"
	StatusFailed     = "FAILED"
)

var validNext = map[string][]string{
	StatusScheduled:  {StatusGenerating},
	StatusGenerating: {StatusPublished, StatusReview, StatusFailed},
	StatusFailed:     {StatusScheduled},
}

// ValidTransition reports whether the state machine allows from → to.
func ValidTransition(from, to string) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is one scheduled publication for a tenant. At most one non-FAILED job
// exists per (tenant, tenant-local calendar day); the factory's transactional
// recheck enforces it and the partial unique index in internal/db backstops
// it against racing triggers.
type Job struct {
	ID         uint64 `gorm:"primaryKey"`
	TenantID   uint64 `gorm:"index;not null"`
	TemplateID uint64 `gorm:"not null"`
	LocationID uint64 `gorm:"not null"`

	Content string `gorm:"type:text;not null"`

	// ScheduledOn is the tenant-local calendar day, YYYY-MM-DD.
	ScheduledOn string    `gorm:"type:date;index;not null"`
	ScheduledAt time.Time `gorm:"not null"`

	Status     string  `gorm:"index;not null;default:'SCHEDULED'"`
	RetryCount int     `gorm:"not null;default:0"`
	LastError  *string `gorm:"type:text"`

	// AudioEmbedded means the published text claims to embed the audio
	// asset; the recovery scanner clears it when the asset has no public
	// URL so a later pass can retry the embed.
	AudioEmbedded bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Asset statuses for long-running sub-resources produced by the pipeline.
const (
	AssetPending    = "PENDING"
	AssetProcessing = "PROCESSING"
	AssetReady      = "READY"
	AssetFailed     = "FAILED"
)

// Asset is one generated sub-resource of a job (audio narration, imagery).
// Assets can outlive a single pipeline run and are recovered independently.
type Asset struct {
	ID    uint64 `gorm:"primaryKey"`
	JobID uint64 `gorm:"index;not null"`

	Kind      string  `gorm:"not null"` // audio / image
	Status    string  `gorm:"index;not null;default:'PENDING'"`
	PublicURL *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
