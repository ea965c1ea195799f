package dataset

import (
	"strings"
	"time"
)

// Field names the logical columns the engine computes over. The mapping from
// logical field to actual source column is resolved once per load (see
// Schema), never re-probed per call.
type Field string

const (
	FieldAgency         Field = "agency"
	FieldCluster        Field = "cluster"
	FieldSite           Field = "site"
	FieldMachine        Field = "machine"
	FieldQuantityTotal  Field = "quantity_total"
	FieldQuantityDone   Field = "quantity_done"
	FieldQuantityToday  Field = "quantity_today"
	FieldDailyCapacity  Field = "daily_capacity"
	FieldDaysRequired   Field = "days_required"
	FieldDaysToDeadline Field = "days_to_deadline"
	FieldActiveSite     Field = "active_site"
	FieldStartDate      Field = "start_date"
	FieldPlannedEnd     Field = "planned_end_date"
	FieldExpectedEnd    Field = "expected_end_date"
)

// Record is one row of the source dataset. Quantity fields default to zero
// when blank; fields where blank means "unknown, exclude" are pointers.
type Record struct {
	Agency  string
	Cluster string
	Site    string
	// Machine holds the raw comma-separated machine list for the row.
	Machine string

	QuantityTotal float64
	QuantityDone  float64

	QuantityToday  *float64
	DailyCapacity  *float64
	DaysRequired   *float64
	DaysToDeadline *float64

	// ActiveSite is the raw flag value; compare case-insensitively to
	// "yes"/"no". Other values count in neither bucket.
	ActiveSite string

	StartDate   *time.Time
	PlannedEnd  *time.Time
	ExpectedEnd *time.Time
}

// Active reports whether the row's Active_site flag is "yes".
func (r Record) Active() bool {
	return strings.EqualFold(strings.TrimSpace(r.ActiveSite), "yes")
}

// Inactive reports whether the row's Active_site flag is "no".
func (r Record) Inactive() bool {
	return strings.EqualFold(strings.TrimSpace(r.ActiveSite), "no")
}

// MachineTokens splits the Machine field on commas and trims whitespace.
// Duplicate names are counted every time they appear; the displayed machine
// totals depend on this exact arithmetic.
func (r Record) MachineTokens() []string {
	if strings.TrimSpace(r.Machine) == "" {
		return nil
	}
	var tokens []string
	for _, part := range strings.Split(r.Machine, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Snapshot is one fully-loaded dataset. Snapshots are immutable once built;
// the provider swaps whole snapshots so readers never observe a partial load.
type Snapshot struct {
	Records  []Record
	Fields   map[Field]bool
	LoadedAt time.Time
}

// Has reports whether the logical field resolved to a source column.
func (s *Snapshot) Has(f Field) bool {
	return s != nil && s.Fields[f]
}

// Empty reports whether the snapshot holds no records.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Records) == 0
}

// Agencies returns the distinct non-blank agency keys in dataset encounter
// order. Rotation depends on this order being the source order, not sorted.
func (s *Snapshot) Agencies() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	for _, r := range s.Records {
		key := strings.TrimSpace(r.Agency)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// ByAgency returns the records belonging to the given agency key.
func (s *Snapshot) ByAgency(key string) []Record {
	if s == nil {
		return nil
	}
	var out []Record
	for _, r := range s.Records {
		if strings.TrimSpace(r.Agency) == key {
			out = append(out, r)
		}
	}
	return out
}
