package main

import (
	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/types"
	"github.com/tracklane/tracklane/internal/ui"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list, and modify projects",
}

var (
	projectKey    string
	projectColor  string
	projectIcon   string
	projectStatus string
	projectLead   string
)

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.CreateProject(cmd.Context(), actor(), teamID, commands.CreateProjectInput{
			Name:   args[0],
			Key:    projectKey,
			Color:  projectColor,
			Icon:   projectIcon,
			Status: projectStatus,
			LeadID: projectLead,
		}), nil)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.ListProjects(cmd.Context(), teamID)
		return handleResult(res, func(entity any) string {
			return ui.ProjectTable(entity.([]*types.Project))
		})
	},
}

var (
	projectRef  string
	projectName string
)

var projectUpdateCmd = &cobra.Command{
	Use:   "update (--id <id> | --name <name>)",
	Short: "Update a project located by id or name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		in := commands.UpdateProjectInput{ID: projectRef, Name: projectName}
		if cmd.Flags().Changed("new-name") {
			v, _ := cmd.Flags().GetString("new-name")
			in.NewName = &v
		}
		if cmd.Flags().Changed("key") {
			in.Key = &projectKey
		}
		if cmd.Flags().Changed("color") {
			in.Color = &projectColor
		}
		if cmd.Flags().Changed("icon") {
			in.Icon = &projectIcon
		}
		if cmd.Flags().Changed("status") {
			in.Status = &projectStatus
		}
		if cmd.Flags().Changed("lead") {
			in.LeadID = &projectLead
		}
		return handleResult(orch.UpdateProject(cmd.Context(), actor(), teamID, in), nil)
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete (--id <id> | --name <name>)",
	Short: "Delete a project; its issues keep existing without a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.DeleteProject(cmd.Context(), actor(), teamID, projectRef, projectName), nil)
	},
}

func init() {
	projectCreateCmd.Flags().StringVarP(&projectKey, "key", "k", "", "Short uppercase key, e.g. WEB (required)")
	projectCreateCmd.Flags().StringVar(&projectColor, "color", "", "Hex color")
	projectCreateCmd.Flags().StringVar(&projectIcon, "icon", "", "Icon name")
	projectCreateCmd.Flags().StringVar(&projectStatus, "status", "", "Status (active, completed, canceled)")
	projectCreateCmd.Flags().StringVar(&projectLead, "lead", "", "Member name or id for the lead")
	_ = projectCreateCmd.MarkFlagRequired("key")

	for _, c := range []*cobra.Command{projectUpdateCmd, projectDeleteCmd} {
		c.Flags().StringVar(&projectRef, "id", "", "Project id")
		c.Flags().StringVar(&projectName, "name", "", "Project name (substring match)")
	}
	projectUpdateCmd.Flags().String("new-name", "", "Replacement name")
	projectUpdateCmd.Flags().StringVarP(&projectKey, "key", "k", "", "Replacement key")
	projectUpdateCmd.Flags().StringVar(&projectColor, "color", "", "Hex color")
	projectUpdateCmd.Flags().StringVar(&projectIcon, "icon", "", "Icon name")
	projectUpdateCmd.Flags().StringVar(&projectStatus, "status", "", "Status")
	projectUpdateCmd.Flags().StringVar(&projectLead, "lead", "", "Lead (empty clears)")

	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectUpdateCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
