package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/docket/internal/models"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Agenda document commands",
	}

	cmd.AddCommand(newDocAttachCmd())
	cmd.AddCommand(newDocListCmd())
	cmd.AddCommand(newDocDetachCmd())
	return cmd
}

func newDocAttachCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		name       string
	)

	cmd := &cobra.Command{
		Use:   "attach <agenda-item-id> <file>",
		Short: "Attach a file to an agenda item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agendaID, err := parseID("agenda item", args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			if name == "" {
				name = filepath.Base(args[1])
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
			doc, err := a.svc.AttachDocument(cmd.Context(), actor, agendaID, data, name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Attached document %d (%s, %s)\n", doc.ID, doc.FileType, formatSize(doc.SizeBytes))
			fmt.Fprintf(out, "Stored at: %s\n", doc.Locator)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	cmd.Flags().StringVar(&name, "name", "", "display name (default file base name)")
	return cmd
}

func newDocListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <agenda-item-id>",
		Short: "List an agenda item's documents, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agendaID, err := parseID("agenda item", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			docs, err := a.svc.ListDocuments(cmd.Context(), agendaID)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
				return nil
			}
			printDocuments(cmd, docs)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printDocuments(cmd *cobra.Command, docs []models.Document) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tUPLOADED\tBY")
	for _, d := range docs {
		by := d.Metadata.Data().UploaderName
		if by == "" {
			by = fmt.Sprintf("%d", d.UploadedBy)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, truncate(d.Name, 40), d.FileType, formatSize(d.SizeBytes), formatTime(d.UploadedAt), by)
	}
	w.Flush()
}

func newDocDetachCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "detach <document-id>",
		Short: "Remove a document and its stored bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("document", args[0])
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
			if err := a.svc.DetachDocument(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Detached document %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}
