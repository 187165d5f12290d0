package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/types"
	"github.com/tracklane/tracklane/internal/ui"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Create, list, and modify issues",
}

var (
	issueDescription string
	issuePriority    string
	issueEstimate    float64
	issueProject     string
	issueState       string
	issueAssignee    string
	issueLabels      []string
)

var issueCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an issue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		in := commands.CreateIssueInput{
			Title:           strings.Join(args, " "),
			Description:     issueDescription,
			Priority:        issuePriority,
			ProjectID:       issueProject,
			WorkflowStateID: issueState,
			AssigneeID:      issueAssignee,
			Labels:          issueLabels,
		}
		if cmd.Flags().Changed("estimate") {
			in.Estimate = &issueEstimate
		}
		return handleResult(orch.CreateIssue(cmd.Context(), actor(), teamID, in), nil)
	},
}

var (
	listStates     []string
	listAssignees  []string
	listProjects   []string
	listLabels     []string
	listPriorities []string
	listSearch     string
	listLimit      int
	listSort       string
	listSortDir    string
)

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.ListIssues(cmd.Context(), teamID, commands.ListIssuesInput{
			States:     listStates,
			Assignees:  listAssignees,
			Projects:   listProjects,
			Labels:     listLabels,
			Priorities: listPriorities,
			Search:     listSearch,
			Limit:      listLimit,
			SortField:  listSort,
			SortDir:    listSortDir,
		})
		return handleResult(res, func(entity any) string {
			list := entity.(*commands.IssueList)
			return ui.IssueTable(list.Issues, teamKey(cmd)) + "\n" + res.Message
		})
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue with its related entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.GetIssue(cmd.Context(), teamID, args[0])
		return handleResult(res, func(entity any) string {
			return ui.IssueDetail(entity.(*types.IssueView), teamKey(cmd))
		})
	},
}

var (
	updateRef       string
	updateTitle     string
	updateCompleted bool
)

var issueUpdateCmd = &cobra.Command{
	Use:   "update (--id <id> | --title <title>)",
	Short: "Update an issue located by id or title",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		in := commands.UpdateIssueInput{ID: updateRef, Title: updateTitle}
		if cmd.Flags().Changed("new-title") {
			v, _ := cmd.Flags().GetString("new-title")
			in.NewTitle = &v
		}
		if cmd.Flags().Changed("description") {
			in.Description = &issueDescription
		}
		if cmd.Flags().Changed("priority") {
			in.Priority = &issuePriority
		}
		if cmd.Flags().Changed("estimate") {
			in.Estimate = &issueEstimate
		}
		if cmd.Flags().Changed("project") {
			in.ProjectID = &issueProject
		}
		if cmd.Flags().Changed("state") {
			in.WorkflowStateID = &issueState
		}
		if cmd.Flags().Changed("assignee") {
			in.AssigneeID = &issueAssignee
		}
		if cmd.Flags().Changed("completed") {
			in.Completed = &updateCompleted
		}
		return handleResult(orch.UpdateIssue(cmd.Context(), actor(), teamID, in), nil)
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete (--id <id> | --title <title>)",
	Short: "Delete an issue located by id or title",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.DeleteIssue(cmd.Context(), actor(), teamID, updateRef, updateTitle), nil)
	},
}

var issueCommentCmd = &cobra.Command{
	Use:   "comment <issue-id> <body>",
	Short: "Add a comment to an issue",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		body := strings.Join(args[1:], " ")
		return handleResult(orch.AddComment(cmd.Context(), actor(), teamID, args[0], body), nil)
	},
}

// teamKey fetches the team key for display codes; falls back to the id.
func teamKey(cmd *cobra.Command) string {
	team, err := store.GetTeam(cmd.Context(), teamID)
	if err != nil {
		return teamID
	}
	return team.Key
}

func init() {
	issueCreateCmd.Flags().StringVarP(&issueDescription, "description", "d", "", "Issue description")
	issueCreateCmd.Flags().StringVarP(&issuePriority, "priority", "p", "", "Priority (none, low, medium, high, urgent)")
	issueCreateCmd.Flags().Float64Var(&issueEstimate, "estimate", 0, "Point estimate")
	issueCreateCmd.Flags().StringVar(&issueProject, "project", "", "Project name, key, or id")
	issueCreateCmd.Flags().StringVarP(&issueState, "state", "s", "", "Workflow state name or id (required)")
	issueCreateCmd.Flags().StringVarP(&issueAssignee, "assignee", "a", "", "Member name or id")
	issueCreateCmd.Flags().StringSliceVarP(&issueLabels, "label", "l", nil, "Label names or ids")
	_ = issueCreateCmd.MarkFlagRequired("state")

	issueListCmd.Flags().StringSliceVar(&listStates, "state", nil, "Filter by workflow state")
	issueListCmd.Flags().StringSliceVar(&listAssignees, "assignee", nil, "Filter by assignee ('unassigned' for none)")
	issueListCmd.Flags().StringSliceVar(&listProjects, "project", nil, "Filter by project")
	issueListCmd.Flags().StringSliceVar(&listLabels, "label", nil, "Filter by label")
	issueListCmd.Flags().StringSliceVar(&listPriorities, "priority", nil, "Filter by priority")
	issueListCmd.Flags().StringVar(&listSearch, "search", "", "Text search over title and description")
	issueListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum issues to return (0 = all)")
	issueListCmd.Flags().StringVar(&listSort, "sort", "", "Sort field (title, number, createdAt, updatedAt, priority)")
	issueListCmd.Flags().StringVar(&listSortDir, "direction", "", "Sort direction (asc, desc)")

	for _, c := range []*cobra.Command{issueUpdateCmd, issueDeleteCmd} {
		c.Flags().StringVar(&updateRef, "id", "", "Issue id")
		c.Flags().StringVar(&updateTitle, "title", "", "Issue title (substring match)")
	}
	issueUpdateCmd.Flags().String("new-title", "", "Replacement title")
	issueUpdateCmd.Flags().StringVarP(&issueDescription, "description", "d", "", "Replacement description")
	issueUpdateCmd.Flags().StringVarP(&issuePriority, "priority", "p", "", "Priority")
	issueUpdateCmd.Flags().Float64Var(&issueEstimate, "estimate", 0, "Point estimate")
	issueUpdateCmd.Flags().StringVar(&issueProject, "project", "", "Project (empty clears)")
	issueUpdateCmd.Flags().StringVarP(&issueState, "state", "s", "", "Workflow state")
	issueUpdateCmd.Flags().StringVarP(&issueAssignee, "assignee", "a", "", "Assignee ('unassigned' clears)")
	issueUpdateCmd.Flags().BoolVar(&updateCompleted, "completed", false, "Mark completed")

	issueCmd.AddCommand(issueCreateCmd, issueListCmd, issueShowCmd, issueUpdateCmd, issueDeleteCmd, issueCommentCmd)
	rootCmd.AddCommand(issueCmd)
}
