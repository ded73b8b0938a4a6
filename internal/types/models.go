package types

import "time"

// User is an account that owns health records.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordKind discriminates the health_records table.
type RecordKind string

const (
	RecordGlucose  RecordKind = "glucose"
	RecordActivity RecordKind = "activity"
	RecordInsulin  RecordKind = "insulin"
	RecordFood     RecordKind = "food"
)

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	switch k {
	case RecordGlucose, RecordActivity, RecordInsulin, RecordFood:
		return true
	default:
		return false
	}
}

// HealthRecord is one measurement or log entry. Value's meaning and Unit
// depend on Kind (mg/dL for glucose, minutes for activity, units for insulin,
// grams of carbohydrate for food). Details holds kind-specific extras.
type HealthRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Kind       RecordKind     `json:"kind"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	RecordedAt time.Time      `json:"recordedAt"`
	Notes      string         `json:"notes,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// RecordFilter selects records for listing. Results are ordered newest
// RecordedAt first.
type RecordFilter struct {
	UserID string
	Kind   RecordKind
	// Since and Until bound RecordedAt when non-zero.
	Since time.Time
	Until time.Time
	Limit int
}
