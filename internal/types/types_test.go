package types

import (
	"strings"
	"testing"
	"time"
)

func TestIssueValidate(t *testing.T) {
	issue := &Issue{Title: "Fix login", Priority: PriorityNone, StateID: "state-1"}
	if err := issue.Validate(); err != nil {
		t.Fatalf("valid issue rejected: %v", err)
	}

	issue.Title = ""
	if err := issue.Validate(); err == nil {
		t.Fatal("expected error for empty title")
	}

	issue.Title = strings.Repeat("x", MaxTitleLength+1)
	if err := issue.Validate(); err == nil {
		t.Fatal("expected error for oversize title")
	}

	// The bound counts runes, not bytes.
	issue.Title = strings.Repeat("é", MaxTitleLength)
	if err := issue.Validate(); err != nil {
		t.Fatalf("multibyte title at the bound rejected: %v", err)
	}
	issue.Title = strings.Repeat("é", MaxTitleLength+1)
	if err := issue.Validate(); err == nil {
		t.Fatal("expected error for oversize multibyte title")
	}

	issue.Title = "ok"
	issue.Priority = "critical"
	if err := issue.Validate(); err == nil {
		t.Fatal("expected error for invalid priority")
	}

	issue.Priority = PriorityHigh
	issue.StateID = ""
	if err := issue.Validate(); err == nil {
		t.Fatal("expected error for missing workflow state")
	}
}

func TestIssueSetDefaults(t *testing.T) {
	issue := &Issue{Title: "t", StateID: "s"}
	issue.SetDefaults()
	if issue.Priority != PriorityNone {
		t.Fatalf("expected default priority none, got %s", issue.Priority)
	}

	issue.Priority = PriorityUrgent
	issue.SetDefaults()
	if issue.Priority != PriorityUrgent {
		t.Fatalf("SetDefaults overwrote explicit priority: %s", issue.Priority)
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	order := []Priority{PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("expected %s to rank above %s", order[i], order[i-1])
		}
	}
}

func TestNormalizeAssignee(t *testing.T) {
	if got := NormalizeAssignee("unassigned"); got != "" {
		t.Fatalf("expected sentinel normalized to empty, got %q", got)
	}
	if got := NormalizeAssignee("  Unassigned  "); got != "" {
		t.Fatalf("expected case-insensitive sentinel normalization, got %q", got)
	}
	if got := NormalizeAssignee("user-42"); got != "user-42" {
		t.Fatalf("unexpected normalization of real id: %q", got)
	}
}

func TestProjectValidateKey(t *testing.T) {
	p := &Project{Name: "Web", Key: "WEB", Status: ProjectActive}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}

	for _, bad := range []string{"", "web", "TOOLONGKEY1", "A-B", "1AB"} {
		p.Key = bad
		if err := p.Validate(); err == nil {
			t.Fatalf("expected key %q to be rejected", bad)
		}
	}
}

func TestParseSortSpec(t *testing.T) {
	spec := ParseSortSpec("priority", "asc")
	if spec.Field != SortFieldPriority || spec.Direction != SortAsc {
		t.Fatalf("unexpected spec %+v", spec)
	}

	spec = ParseSortSpec("updated_at", "descending")
	if spec.Field != SortFieldUpdated || spec.Direction != SortDesc {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestParseSortSpecFallsBackToDefault(t *testing.T) {
	spec := ParseSortSpec("votes", "asc")
	if spec != DefaultSortSpec() {
		t.Fatalf("expected default spec for unknown field, got %+v", spec)
	}

	spec = ParseSortSpec("title", "sideways")
	if spec.Field != SortFieldTitle || spec.Direction != SortDesc {
		t.Fatalf("expected desc fallback for bad direction, got %+v", spec)
	}
}

func TestDeriveSessionTitle(t *testing.T) {
	if got := DeriveSessionTitle("  Show my open issues  "); got != "Show my open issues" {
		t.Fatalf("unexpected title %q", got)
	}

	long := strings.Repeat("a", 80)
	got := DeriveSessionTitle(long)
	if got != strings.Repeat("a", SessionTitleLimit)+"..." {
		t.Fatalf("unexpected truncated title %q", got)
	}

	if got := DeriveSessionTitle("   "); got != "" {
		t.Fatalf("expected empty title for blank message, got %q", got)
	}
}

func TestInvitationExpired(t *testing.T) {
	now := time.Now()
	inv := &Invitation{ExpiresAt: now.Add(time.Hour)}
	if inv.Expired(now) {
		t.Fatal("invitation should not be expired yet")
	}
	if !inv.Expired(now.Add(2 * time.Hour)) {
		t.Fatal("invitation should be expired")
	}
}

func TestDisplayCode(t *testing.T) {
	issue := &Issue{Number: 42}
	if got := issue.DisplayCode("WEB"); got != "WEB-42" {
		t.Fatalf("unexpected display code %q", got)
	}
}
