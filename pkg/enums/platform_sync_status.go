package enums

// PlatformSyncStatus records the outcome of pushing a local change to the
// commerce platform.
type PlatformSyncStatus string

const (
	PlatformSyncNotRequired PlatformSyncStatus = "NOT_REQUIRED"
	PlatformSyncSynced      PlatformSyncStatus = "SYNCED"
	PlatformSyncFailed      PlatformSyncStatus = "FAILED"
)

var validPlatformSyncStatuses = []PlatformSyncStatus{
	PlatformSyncNotRequired,
	PlatformSyncSynced,
	PlatformSyncFailed,
}

// IsValid reports whether the value is a known PlatformSyncStatus.
func (s PlatformSyncStatus) IsValid() bool {
	for _, candidate := range validPlatformSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
