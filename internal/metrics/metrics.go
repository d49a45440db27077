// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Resource names used as metric labels.
const (
	ResourceUser        = "user"
	ResourceEntity      = "entity"
	ResourceAssociation = "association"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, tests, etc.
type Recorder interface {
	IncRecordCreated(resource string)
	IncRecordUpdated(resource string)
	IncRecordDeleted(resource string)
	// IncConflict counts uniqueness violations, from pre-checks or the store.
	IncConflict(resource string)
}
