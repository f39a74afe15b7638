package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Memo notifications for a user",
	}

	cmd.AddCommand(newInboxListCmd())
	cmd.AddCommand(newInboxAckCmd())
	return cmd
}

func newInboxListCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			actor, err := a.actor(cmd.Context(), actorID)
			if err != nil {
				return err
			}
			list, err := a.svc.Inbox(cmd.Context(), actor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No notifications.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMEMO\tPRIORITY\tSUBJECT\tSENT")
			for _, n := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					n.ID, formatUintPtr(n.MemoID), n.Priority, truncate(n.Subject, 50), formatTime(n.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}

func newInboxAckCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "ack <notification-id>",
		Short: "Acknowledge a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("notification", args[0])
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
			if err := a.svc.Acknowledge(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged notification %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}
