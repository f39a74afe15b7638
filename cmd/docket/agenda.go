package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zulandar/docket/internal/agenda"
	"github.com/zulandar/docket/internal/models"
)

func newAgendaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Agenda item commands",
	}

	cmd.AddCommand(newAgendaAddCmd())
	cmd.AddCommand(newAgendaListCmd())
	cmd.AddCommand(newAgendaShowCmd())
	cmd.AddCommand(newAgendaUpdateCmd())
	cmd.AddCommand(newAgendaDeleteCmd())
	cmd.AddCommand(newAgendaNextOrderCmd())
	return cmd
}

type agendaFlags struct {
	name        string
	description string
	status      string
	order       int
	presenter   uint
	ministry    uint
	memo        uint
	approval    bool
}

func (f *agendaFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "item title")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.status, "status", "", "status (draft, pending, in_progress, published, finalized)")
	fs.IntVar(&f.order, "order", 0, "position in the agenda (default next free)")
	fs.UintVar(&f.presenter, "presenter", 0, "presenter user ID")
	fs.UintVar(&f.ministry, "ministry", 0, "ministry ID")
	fs.UintVar(&f.memo, "memo", 0, "linked memo ID")
	fs.BoolVar(&f.approval, "cabinet-approval", false, "item requires cabinet approval")
}

func (f *agendaFlags) overlay(fs *pflag.FlagSet, out *agenda.Fields) {
	if fs.Changed("name") {
		out.Name = f.name
	}
	if fs.Changed("description") {
		out.Description = f.description
	}
	if fs.Changed("status") {
		out.Status = f.status
	}
	if fs.Changed("order") {
		out.SortOrder = f.order
	}
	if fs.Changed("presenter") {
		out.PresenterID = &f.presenter
	}
	if fs.Changed("ministry") {
		out.MinistryID = &f.ministry
	}
	if fs.Changed("memo") {
		out.MemoID = &f.memo
	}
	if fs.Changed("cabinet-approval") {
		out.CabinetApprovalRequired = f.approval
	}
}

func fieldsOf(a models.AgendaItem) agenda.Fields {
	return agenda.Fields{
		Name:                    a.Name,
		Description:             a.Description,
		Status:                  a.Status,
		SortOrder:               a.SortOrder,
		PresenterID:             a.PresenterID,
		MinistryID:              a.MinistryID,
		MemoID:                  a.MemoID,
		CabinetApprovalRequired: a.CabinetApprovalRequired,
	}
}

func newAgendaAddCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		flags      agendaFlags
	)

	cmd := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add an item to a meeting's agenda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := parseID("meeting", args[0])
			if err != nil {
				return err
			}
			var f agenda.Fields
			flags.overlay(cmd.Flags(), &f)

			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor(cmd.Context(), actorID)
			if err != nil {
				return err
			}
			item, err := a.svc.CreateAgendaItem(cmd.Context(), actor, meetingID, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added agenda item %d at position %d\n", item.ID, item.SortOrder)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	flags.register(cmd.Flags())
	cmd.MarkFlagRequired("name")
	return cmd
}

func newAgendaListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <meeting-id>",
		Short: "List a meeting's agenda in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := parseID("meeting", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.svc.ListAgenda(cmd.Context(), meetingID)
			if err != nil {
				return err
			}
			printAgenda(cmd, items)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printAgenda(cmd *cobra.Command, items []agenda.Item) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No agenda items found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tNAME\tSTATUS\tMINISTRY\tPRESENTER\tMEMO\tDOCS")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			item.SortOrder, item.ID, truncate(item.Name, 36), item.Status,
			truncate(orDash(item.MinistryName), 24), orDash(item.PresenterName),
			formatUintPtr(item.MemoID), len(item.Documents))
	}
	w.Flush()
}

func newAgendaShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an agenda item and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("agenda item", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			item, err := a.svc.GetAgendaItem(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %d\n", item.ID)
			fmt.Fprintf(out, "Meeting:     %d\n", item.MeetingID)
			fmt.Fprintf(out, "Position:    %d\n", item.SortOrder)
			fmt.Fprintf(out, "Name:        %s\n", item.Name)
			fmt.Fprintf(out, "Status:      %s\n", item.Status)
			fmt.Fprintf(out, "Ministry:    %s\n", orDash(item.MinistryName))
			fmt.Fprintf(out, "Presenter:   %s\n", orDash(item.PresenterName))
			fmt.Fprintf(out, "Memo:        %s\n", formatUintPtr(item.MemoID))
			fmt.Fprintf(out, "Approval:    %t\n", item.CabinetApprovalRequired)
			if item.Description != "" {
				fmt.Fprintf(out, "\nDescription:\n%s\n", item.Description)
			}
			if len(item.Documents) > 0 {
				fmt.Fprintln(out)
				printDocuments(cmd, item.Documents)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newAgendaUpdateCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		flags      agendaFlags
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an agenda item",
		Long:  "Replaces the item's fields. Flags not given keep their current values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("agenda item", args[0])
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
			current, err := a.svc.GetAgendaItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			f := fieldsOf(current.AgendaItem)
			flags.overlay(cmd.Flags(), &f)
			item, err := a.svc.UpdateAgendaItem(cmd.Context(), actor, id, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated agenda item %d (%s, position %d)\n", item.ID, item.Status, item.SortOrder)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	flags.register(cmd.Flags())
	return cmd
}

func newAgendaDeleteCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an agenda item and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("agenda item", args[0])
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
			if err := a.svc.DeleteAgendaItem(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted agenda item %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}

func newAgendaNextOrderCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "next-order <meeting-id>",
		Short: "Print the next free agenda position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID, err := parseID("meeting", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			next, err := a.svc.NextSortOrder(cmd.Context(), meetingID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
