package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/types"
	"github.com/tracklane/tracklane/internal/ui"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Create teams and view team stats",
}

var teamCreateKey string

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team with default workflow states and you as admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := orch.CreateTeam(cmd.Context(), actor(), commands.CreateTeamInput{
			Name: args[0],
			Key:  teamCreateKey,
		})
		return handleResult(res, func(entity any) string {
			team := entity.(*types.Team)
			return fmt.Sprintf("%s\nTeam id: %s (set TRACKLANE_TEAM_ID to use it by default)", res.Message, team.ID)
		})
	},
}

var teamStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate issue counts for the team",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		res := orch.GetTeamStats(cmd.Context(), teamID)
		return handleResult(res, func(entity any) string {
			return ui.Stats(entity.(*types.TeamStats))
		})
	},
}

var (
	stateType     string
	statePosition int
	stateColor    string
)

var stateCreateCmd = &cobra.Command{
	Use:   "state-create <name>",
	Short: "Add a workflow state to the team's board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.CreateWorkflowState(cmd.Context(), teamID, args[0], stateType, stateColor, statePosition), nil)
	},
}

var stateDeleteCmd = &cobra.Command{
	Use:   "state-delete <name-or-id>",
	Short: "Remove a workflow state (fails while issues occupy it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.DeleteWorkflowState(cmd.Context(), teamID, args[0]), nil)
	},
}

var labelColor string

var labelCreateCmd = &cobra.Command{
	Use:   "label-create <name>",
	Short: "Add a label to the team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.CreateLabel(cmd.Context(), teamID, args[0], labelColor), nil)
	},
}

var labelDeleteCmd = &cobra.Command{
	Use:   "label-delete <name-or-id>",
	Short: "Remove a label and its issue links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		return handleResult(orch.DeleteLabel(cmd.Context(), teamID, args[0]), nil)
	},
}

func init() {
	teamCreateCmd.Flags().StringVarP(&teamCreateKey, "key", "k", "", "Short uppercase team key (required)")
	_ = teamCreateCmd.MarkFlagRequired("key")

	stateCreateCmd.Flags().StringVar(&stateType, "type", "unstarted", "State type (backlog, unstarted, started, completed, canceled)")
	stateCreateCmd.Flags().IntVar(&statePosition, "position", 0, "Board column position")
	stateCreateCmd.Flags().StringVar(&stateColor, "color", "", "Hex color")

	labelCreateCmd.Flags().StringVar(&labelColor, "color", "", "Hex color")

	teamCmd.AddCommand(teamCreateCmd, teamStatsCmd, stateCreateCmd, stateDeleteCmd, labelCreateCmd, labelDeleteCmd)
	rootCmd.AddCommand(teamCmd)
}
