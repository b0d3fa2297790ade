package domain

import "time"

type CopyPolicy string

const (
	CopyPolicyRequest CopyPolicy = "request"
	CopyPolicyAllow   CopyPolicy = "allow"
	CopyPolicyDeny    CopyPolicy = "deny"
)

// Drive is the per-user storage tenant. One row per owner; quota counters
// live here. BandwidthUsed is reset lazily: the first reserve that observes
// now >= bandwidth_reset_at zeroes the counter and advances the boundary.
type Drive struct {
	ID               int64      `json:"id" db:"id"`
	OwnerID          string     `json:"owner_id" db:"owner_id"`
	StorageUsed      int64      `json:"storage_used" db:"storage_used"`
	StorageLimit     int64      `json:"storage_limit" db:"storage_limit"`
	BandwidthUsed    int64      `json:"bandwidth_used" db:"bandwidth_used"`
	BandwidthLimit   int64      `json:"bandwidth_limit" db:"bandwidth_limit"`
	BandwidthResetAt time.Time  `json:"bandwidth_reset_at" db:"bandwidth_reset_at"`
	IsPublic         bool       `json:"is_public" db:"is_public"`
	CopyPolicy       CopyPolicy `json:"copy_policy" db:"copy_policy"`
	TrashRetention   string     `json:"trash_retention" db:"trash_retention"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

type QuotaInfo struct {
	StorageUsed      int64     `json:"storage_used"`
	StorageLimit     int64     `json:"storage_limit"`
	StorageAvailable int64     `json:"storage_available"`
	UsagePercent     float64   `json:"usage_percent"`
	BandwidthUsed    int64     `json:"bandwidth_used"`
	BandwidthLimit   int64     `json:"bandwidth_limit"`
	BandwidthResetAt time.Time `json:"bandwidth_reset_at"`
}

// QuotaKind selects which counter a reservation charges.
type QuotaKind string

const (
	QuotaStorage   QuotaKind = "storage"
	QuotaBandwidth QuotaKind = "bandwidth"
)
