package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/docket/internal/memo"
)

func newMemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memo",
		Short: "Memo management commands",
	}

	cmd.AddCommand(newMemoCreateCmd())
	cmd.AddCommand(newMemoListCmd())
	cmd.AddCommand(newMemoShowCmd())
	cmd.AddCommand(newMemoUpdateCmd())
	cmd.AddCommand(newMemoDeleteCmd())
	return cmd
}

// parseID parses a positional resource ID.
func parseID(kind, s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return uint(v), nil
}

func newMemoCreateCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		d          memo.Draft
		stateDept  uint
		agency     uint
		affects    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new memo",
		Long:  "Creates a memo owned by the acting user. Status defaults to draft.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("state-department") {
				d.StateDepartmentID = &stateDept
			}
			if cmd.Flags().Changed("agency") {
				d.AgencyID = &agency
			}
			return runMemoCreate(cmd, configPath, actorID, d, affects)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	cmd.Flags().StringVar(&d.Name, "name", "", "memo title (required)")
	cmd.Flags().StringVar(&d.Summary, "summary", "", "short summary (required)")
	cmd.Flags().StringVar(&d.Body, "body", "", "memo body (required)")
	cmd.Flags().StringVar(&d.MemoType, "type", "", "memo type (cabinet, committee, information)")
	cmd.Flags().StringVar(&d.Priority, "priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&d.Status, "status", "", "initial status (default draft)")
	cmd.Flags().UintVar(&d.MinistryID, "ministry", 0, "owning ministry ID (required)")
	cmd.Flags().UintVar(&stateDept, "state-department", 0, "state department ID")
	cmd.Flags().UintVar(&agency, "agency", 0, "agency ID")
	cmd.Flags().StringSliceVar(&affects, "affects", nil, "affected entities, e.g. ministry_4,agency_2")
	return cmd
}

func runMemoCreate(cmd *cobra.Command, configPath string, actorID uint, d memo.Draft, affects []string) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor(cmd.Context(), actorID)
	if err != nil {
		return err
	}
	created, err := a.svc.CreateMemo(cmd.Context(), actor, d, affects)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created memo %d (%s)\n", created.ID, created.Status)
	if len(created.AffectedEntities) > 0 {
		fmt.Fprintf(out, "Affects: %s\n", strings.Join(created.AffectedEntities, ", "))
	}
	return nil
}

func newMemoListCmd() *cobra.Command {
	var (
		configPath string
		f          memo.Filter
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memos",
		Long:  "Lists memos, most recently updated first. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoList(cmd, configPath, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by status")
	cmd.Flags().UintVar(&f.MinistryID, "ministry", 0, "filter by ministry ID")
	cmd.Flags().UintVar(&f.CreatedBy, "created-by", 0, "filter by creator user ID")
	return cmd
}

func runMemoList(cmd *cobra.Command, configPath string, f memo.Filter) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	memos, err := a.svc.ListMemos(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(memos) == 0 {
		fmt.Fprintln(out, "No memos found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tPRIORITY\tSTATUS\tMINISTRY\tUPDATED")
	for _, m := range memos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, truncate(m.Name, 40), m.MemoType, m.Priority, m.Status, m.MinistryID, formatTime(m.UpdatedAt))
	}
	w.Flush()
	return nil
}

func newMemoShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show memo details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("memo", args[0])
			if err != nil {
				return err
			}
			return runMemoShow(cmd, configPath, id)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runMemoShow(cmd *cobra.Command, configPath string, id uint) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.svc.GetMemo(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", m.ID)
	fmt.Fprintf(out, "Name:        %s\n", m.Name)
	fmt.Fprintf(out, "Type:        %s\n", m.MemoType)
	fmt.Fprintf(out, "Priority:    %s\n", m.Priority)
	fmt.Fprintf(out, "Status:      %s\n", m.Status)
	fmt.Fprintf(out, "Ministry:    %d\n", m.MinistryID)
	if m.StateDepartmentID != nil {
		fmt.Fprintf(out, "State dept:  %d\n", *m.StateDepartmentID)
	}
	if m.AgencyID != nil {
		fmt.Fprintf(out, "Agency:      %d\n", *m.AgencyID)
	}
	fmt.Fprintf(out, "Created by:  %d\n", m.CreatedBy)
	fmt.Fprintf(out, "Created:     %s\n", formatTime(m.CreatedAt))
	fmt.Fprintf(out, "Submitted:   %s\n", formatTimePtr(m.SubmittedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatTime(m.UpdatedAt))
	if len(m.AffectedEntities) > 0 {
		fmt.Fprintf(out, "Affects:     %s\n", strings.Join(m.AffectedEntities, ", "))
	}
	if m.Summary != "" {
		fmt.Fprintf(out, "\nSummary:\n%s\n", m.Summary)
	}
	if m.Body != "" {
		fmt.Fprintf(out, "\nBody:\n%s\n", m.Body)
	}
	return nil
}

func newMemoUpdateCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		name       string
		summary    string
		body       string
		memoType   string
		priority   string
		status     string
		ministry   uint
		stateDept  uint
		agency     uint
		affects    []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update memo fields",
		Long:  "Updates only the fields given as flags. --affects replaces the affected entity set; pass --affects= to clear it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("memo", args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			var p memo.Patch
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("summary") {
				p.Summary = &summary
			}
			if flags.Changed("body") {
				p.Body = &body
			}
			if flags.Changed("type") {
				p.MemoType = &memoType
			}
			if flags.Changed("priority") {
				p.Priority = &priority
			}
			if flags.Changed("status") {
				p.Status = &status
			}
			if flags.Changed("ministry") {
				p.MinistryID = &ministry
			}
			if flags.Changed("state-department") {
				p.StateDepartmentID = &stateDept
			}
			if flags.Changed("agency") {
				p.AgencyID = &agency
			}
			var affected *[]string
			if flags.Changed("affects") {
				affected = &affects
			}
			return runMemoUpdate(cmd, configPath, actorID, id, p, affected)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	cmd.Flags().StringVar(&name, "name", "", "new title")
	cmd.Flags().StringVar(&summary, "summary", "", "new summary")
	cmd.Flags().StringVar(&body, "body", "", "new body")
	cmd.Flags().StringVar(&memoType, "type", "", "new memo type")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status (draft, submitted, under_review, approved, rejected)")
	cmd.Flags().UintVar(&ministry, "ministry", 0, "new owning ministry ID")
	cmd.Flags().UintVar(&stateDept, "state-department", 0, "new state department ID (0 clears)")
	cmd.Flags().UintVar(&agency, "agency", 0, "new agency ID (0 clears)")
	cmd.Flags().StringSliceVar(&affects, "affects", nil, "replacement affected entities")
	return cmd
}

func runMemoUpdate(cmd *cobra.Command, configPath string, actorID, id uint, p memo.Patch, affected *[]string) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor(cmd.Context(), actorID)
	if err != nil {
		return err
	}
	updated, err := a.svc.UpdateMemo(cmd.Context(), actor, id, p, affected)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if updated.PreviousStatus != updated.Status {
		fmt.Fprintf(out, "Updated memo %d (%s -> %s)\n", updated.ID, updated.PreviousStatus, updated.Status)
	} else {
		fmt.Fprintf(out, "Updated memo %d\n", updated.ID)
	}
	return nil
}

func newMemoDeleteCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft memo",
		Long:  "Deletes a memo. Only the creator may delete, and only while the memo is a draft.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("memo", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor(cmd.Context(), actorID)
			if err != nil {
				return err
			}
			if err := a.svc.DeleteMemo(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted memo %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}
