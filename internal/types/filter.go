package types

import "strings"

// IssueFilter is used to filter issue queries. Each field is optional; set
// fields combine with AND semantics, and an empty field imposes no constraint.
type IssueFilter struct {
	States     []string   // workflow state IDs (OR within the set)
	Assignees  []string   // user IDs
	Projects   []string   // project IDs
	Labels     []string   // label IDs; issue matches if ANY of its links matches
	Priorities []Priority // priority values
	Search     string     // case-insensitive substring over title OR description
	Limit      int        // 0 = no limit
}

// Empty reports whether the filter imposes no constraints.
func (f *IssueFilter) Empty() bool {
	return len(f.States) == 0 && len(f.Assignees) == 0 && len(f.Projects) == 0 &&
		len(f.Labels) == 0 && len(f.Priorities) == 0 && f.Search == ""
}

// SortField names an issue column usable for ordering
type SortField string

// Sort field constants
const (
	SortFieldTitle    SortField = "title"
	SortFieldNumber   SortField = "number"
	SortFieldCreated  SortField = "createdAt"
	SortFieldUpdated  SortField = "updatedAt"
	SortFieldPriority SortField = "priority"
)

// SortDirection is "asc" or "desc"
type SortDirection string

// Sort direction constants
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec pairs a sort field with a direction.
type SortSpec struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSortSpec returns the default ordering for issue queries:
// creation time, newest first.
func DefaultSortSpec() SortSpec {
	return SortSpec{Field: SortFieldCreated, Direction: SortDesc}
}

// ParseSortSpec converts raw field/direction strings into a SortSpec.
// Unrecognised fields or directions fall back to the default ordering
// rather than erroring; callers get a usable spec in all cases.
func ParseSortSpec(field, direction string) SortSpec {
	f := mapSortField(field)
	if f == "" {
		return DefaultSortSpec()
	}
	d := mapSortDirection(direction)
	if d == "" {
		d = SortDesc
	}
	return SortSpec{Field: f, Direction: d}
}

func mapSortField(raw string) SortField {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "title":
		return SortFieldTitle
	case "number":
		return SortFieldNumber
	case "created", "createdat", "created_at":
		return SortFieldCreated
	case "updated", "updatedat", "updated_at":
		return SortFieldUpdated
	case "priority":
		return SortFieldPriority
	default:
		return ""
	}
}

func mapSortDirection(raw string) SortDirection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending":
		return SortAsc
	case "desc", "descending":
		return SortDesc
	default:
		return ""
	}
}
