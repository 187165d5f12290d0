// Package ui renders entities for terminal output.
package ui

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	humanize "github.com/dustin/go-humanize"

	"github.com/tracklane/tracklane/internal/types"
)

const maxTitleWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func priorityColor(p types.Priority) lipgloss.Color {
	switch p {
	case types.PriorityUrgent:
		return lipgloss.Color("9")
	case types.PriorityHigh:
		return lipgloss.Color("11")
	case types.PriorityMedium:
		return lipgloss.Color("12")
	case types.PriorityLow:
		return lipgloss.Color("10")
	default:
		return lipgloss.Color("8")
	}
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IssueTable renders issues as a bordered table. teamKey builds the display
// code for issues with no project.
func IssueTable(views []*types.IssueView, teamKey string) string {
	if len(views) == 0 {
		return dimStyle.Render("No issues found.")
	}

	rows := make([][]string, len(views))
	priorities := make([]types.Priority, len(views))
	for i, v := range views {
		key := teamKey
		if v.Project != nil {
			key = v.Project.Key
		}
		state := v.StateID
		if v.State != nil {
			state = v.State.Name
		}
		assignee := v.AssigneeName
		if assignee == "" {
			assignee = "-"
		}
		rows[i] = []string{
			v.DisplayCode(key),
			state,
			string(v.Priority),
			truncate(v.Title, maxTitleWidth),
			assignee,
			humanize.Time(v.UpdatedAt),
		}
		priorities[i] = v.Priority
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "State", "Priority", "Title", "Assignee", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Inherit(headerStyle)
			}
			switch col {
			case 2:
				if row >= 0 && row < len(priorities) {
					return s.Foreground(priorityColor(priorities[row]))
				}
			case 3:
				return s.Inherit(titleStyle)
			}
			return s
		})

	return t.Render()
}

// IssueDetail renders one issue with its related entities.
func IssueDetail(v *types.IssueView, teamKey string) string {
	key := teamKey
	if v.Project != nil {
		key = v.Project.Key
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render(v.DisplayCode(key)), titleStyle.Render(v.Title))
	if v.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Description)
	}
	fmt.Fprintf(&b, "\n")
	if v.State != nil {
		fmt.Fprintf(&b, "State:     %s\n", v.State.Name)
	}
	fmt.Fprintf(&b, "Priority:  %s\n", v.Priority)
	if v.Project != nil {
		fmt.Fprintf(&b, "Project:   %s (%s)\n", v.Project.Name, v.Project.Key)
	}
	if v.AssigneeName != "" {
		fmt.Fprintf(&b, "Assignee:  %s\n", v.AssigneeName)
	}
	if len(v.Labels) > 0 {
		names := make([]string, len(v.Labels))
		for i, l := range v.Labels {
			names[i] = l.Name
		}
		fmt.Fprintf(&b, "Labels:    %s\n", strings.Join(names, ", "))
	}
	if v.Estimate != nil {
		fmt.Fprintf(&b, "Estimate:  %g\n", *v.Estimate)
	}
	fmt.Fprintf(&b, "Comments:  %d\n", v.CommentCount)
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("created "+humanize.Time(v.CreatedAt)+", updated "+humanize.Time(v.UpdatedAt)))
	return b.String()
}

// ProjectTable renders projects as a bordered table.
func ProjectTable(projects []*types.Project) string {
	if len(projects) == 0 {
		return dimStyle.Render("No projects found.")
	}
	rows := make([][]string, len(projects))
	for i, p := range projects {
		lead := p.LeadName
		if lead == "" {
			lead = "-"
		}
		rows[i] = []string{p.Key, p.Name, string(p.Status), lead}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("Key", "Name", "Status", "Lead").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Inherit(headerStyle)
			}
			return s
		})
	return t.Render()
}

// MemberTable renders team memberships.
func MemberTable(members []*types.Membership) string {
	if len(members) == 0 {
		return dimStyle.Render("No members found.")
	}
	rows := make([][]string, len(members))
	for i, m := range members {
		rows[i] = []string{m.UserName, m.Email, string(m.Role), humanize.Time(m.JoinedAt)}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("Name", "Email", "Role", "Joined").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Inherit(headerStyle)
			}
			return s
		})
	return t.Render()
}

// Stats renders aggregate issue counts.
func Stats(stats *types.TeamStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", headerStyle.Render("Total issues:"), stats.Total)

	section := func(name string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(name))
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-20s %d\n", k, counts[k])
		}
	}
	section("By state", stats.ByState)
	section("By priority", stats.ByPriority)
	section("By assignee", stats.ByAssignee)
	return b.String()
}
