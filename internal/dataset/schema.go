package dataset

import "strings"

// columnCandidates lists, per logical field, the source column spellings seen
// in real exports, in preference order.
var columnCandidates = map[Field][]string{
	FieldAgency:         {"Agency", "agency_name", "agency", "AGENCY"},
	FieldCluster:        {"Cluster", "cluster", "CLUSTER"},
	FieldSite:           {"Site", "site", "SITE", "site_name"},
	FieldMachine:        {"Machine", "machine"},
	FieldQuantityTotal:  {"Quantity to be remediated in MT"},
	FieldQuantityDone:   {"Cumulative Quantity remediated till date in MT"},
	FieldQuantityToday:  {"Quantity remediated today"},
	FieldDailyCapacity:  {"Daily_Capacity"},
	FieldDaysRequired:   {"days_required"},
	FieldDaysToDeadline: {"days_to_sept30"},
	FieldActiveSite:     {"Active_site"},
	FieldStartDate:      {"start_date"},
	FieldPlannedEnd:     {"planned_end_date"},
	FieldExpectedEnd:    {"expected_end_date"},
}

// Schema maps logical fields to column indexes for one load.
type Schema struct {
	cols map[Field]int
}

// ResolveSchema matches a header row against the known column spellings.
// Header cells are whitespace-trimmed before matching.
func ResolveSchema(header []string) Schema {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}

	cols := make(map[Field]int)
	for field, candidates := range columnCandidates {
		for _, c := range candidates {
			if i, ok := index[c]; ok {
				cols[field] = i
				break
			}
		}
	}
	return Schema{cols: cols}
}

// Has reports whether the field resolved to a column.
func (s Schema) Has(f Field) bool {
	_, ok := s.cols[f]
	return ok
}

// Fields returns the presence set for the resolved schema.
func (s Schema) Fields() map[Field]bool {
	out := make(map[Field]bool, len(s.cols))
	for f := range s.cols {
		out[f] = true
	}
	return out
}

func (s Schema) value(f Field, row []string) (string, bool) {
	i, ok := s.cols[f]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}
