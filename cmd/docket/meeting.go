package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zulandar/docket/internal/meeting"
	"github.com/zulandar/docket/internal/models"
)

func newMeetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Meeting management commands",
	}

	cmd.AddCommand(newMeetingCreateCmd())
	cmd.AddCommand(newMeetingListCmd())
	cmd.AddCommand(newMeetingShowCmd())
	cmd.AddCommand(newMeetingUpdateCmd())
	cmd.AddCommand(newMeetingDeleteCmd())
	cmd.AddCommand(newMeetingParticipantsCmd())
	return cmd
}

// meetingFlags binds the editable meeting fields.
type meetingFlags struct {
	name        string
	meetingType string
	start       string
	duration    int
	ended       string
	location    string
	chair       uint
	status      string
	description string
	color       string
	approvedBy  uint
}

func (m *meetingFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&m.name, "name", "", "meeting name")
	fs.StringVar(&m.meetingType, "type", "", "meeting type, e.g. cabinet or committee")
	fs.StringVar(&m.start, "start", "", "start time (RFC 3339 or \"YYYY-MM-DD HH:MM\" UTC)")
	fs.IntVar(&m.duration, "duration", 0, "duration in minutes (default 60)")
	fs.StringVar(&m.ended, "ended", "", "actual end time")
	fs.StringVar(&m.location, "location", "", "venue")
	fs.UintVar(&m.chair, "chair", 0, "chair user ID")
	fs.StringVar(&m.status, "status", "", "status (scheduled, in_progress, completed, cancelled)")
	fs.StringVar(&m.description, "description", "", "description")
	fs.StringVar(&m.color, "color", "", "calendar color")
	fs.UintVar(&m.approvedBy, "approved-by", 0, "approving user ID")
}

// overlay copies every changed flag onto r.
func (m *meetingFlags) overlay(fs *pflag.FlagSet, r *meeting.Record) error {
	if fs.Changed("name") {
		r.Name = m.name
	}
	if fs.Changed("type") {
		r.Type = m.meetingType
	}
	if fs.Changed("start") {
		t, err := parseWhen(m.start)
		if err != nil {
			return err
		}
		r.StartAt = t
	}
	if fs.Changed("duration") {
		r.DurationMinutes = m.duration
	}
	if fs.Changed("ended") {
		t, err := parseWhen(m.ended)
		if err != nil {
			return err
		}
		r.EndedAt = &t
	}
	if fs.Changed("location") {
		r.Location = m.location
	}
	if fs.Changed("chair") {
		r.ChairID = &m.chair
	}
	if fs.Changed("status") {
		r.Status = m.status
	}
	if fs.Changed("description") {
		r.Description = m.description
	}
	if fs.Changed("color") {
		r.Color = m.color
	}
	if fs.Changed("approved-by") {
		r.ApprovedBy = &m.approvedBy
	}
	return nil
}

func recordOf(m models.Meeting) meeting.Record {
	return meeting.Record{
		Name:            m.Name,
		Type:            m.Type,
		StartAt:         m.StartAt,
		DurationMinutes: m.DurationMinutes,
		EndedAt:         m.EndedAt,
		Location:        m.Location,
		ChairID:         m.ChairID,
		Status:          m.Status,
		Description:     m.Description,
		Color:           m.Color,
		ApprovedBy:      m.ApprovedBy,
	}
}

func newMeetingCreateCmd() *cobra.Command {
	var (
		configPath   string
		actorID      uint
		fields       meetingFlags
		participants []uint
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r meeting.Record
			if err := fields.overlay(cmd.Flags(), &r); err != nil {
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
			m, err := a.svc.CreateMeeting(cmd.Context(), actor, r, participants)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created meeting %d (%s, %s)\n", m.ID, m.Status, formatTime(m.StartAt))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	fields.register(cmd.Flags())
	cmd.Flags().UintSliceVar(&participants, "participants", nil, "participant user IDs")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	return cmd
}

func newMeetingListCmd() *cobra.Command {
	var (
		configPath  string
		date        string
		meetingType string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		Long:  "Lists meetings, latest start first. --date filters to one UTC calendar day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := meeting.Filter{Type: meetingType}
			if date != "" {
				day, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date)
				}
				f.Date = &day
			}
			return runMeetingList(cmd, configPath, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&date, "date", "", "filter by day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&meetingType, "type", "", "filter by type")
	return cmd
}

func runMeetingList(cmd *cobra.Command, configPath string, f meeting.Filter) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	meetings, err := a.svc.ListMeetings(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(meetings) == 0 {
		fmt.Fprintln(out, "No meetings found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTART\tMIN\tLOCATION\tSTATUS\tPEOPLE")
	for _, m := range meetings {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%d\n",
			m.ID, truncate(m.Name, 32), m.Type, formatTime(m.StartAt), m.DurationMinutes,
			truncate(orDash(m.Location), 24), m.Status, m.ParticipantCount)
	}
	w.Flush()
	return nil
}

func newMeetingShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a meeting with its participants and agenda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("meeting", args[0])
			if err != nil {
				return err
			}
			return runMeetingShow(cmd, configPath, id)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runMeetingShow(cmd *cobra.Command, configPath string, id uint) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.svc.GetMeeting(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", v.ID)
	fmt.Fprintf(out, "Name:        %s\n", v.Name)
	fmt.Fprintf(out, "Type:        %s\n", v.Type)
	fmt.Fprintf(out, "Status:      %s\n", v.Status)
	fmt.Fprintf(out, "Start:       %s (%d min)\n", formatTime(v.StartAt), v.DurationMinutes)
	if v.EndedAt != nil {
		fmt.Fprintf(out, "Ended:       %s\n", formatTimePtr(v.EndedAt))
	}
	fmt.Fprintf(out, "Location:    %s\n", orDash(v.Location))
	fmt.Fprintf(out, "Chair:       %s\n", orDash(v.ChairName))
	fmt.Fprintf(out, "Created by:  %s\n", orDash(v.CreatorName))
	if v.ApprovedBy != nil {
		fmt.Fprintf(out, "Approved by: %s\n", orDash(v.ApproverName))
	}
	if v.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", v.Description)
	}

	if len(v.Participants) > 0 {
		fmt.Fprintln(out, "\nParticipants:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  USER\tNAME")
		for _, p := range v.Participants {
			fmt.Fprintf(w, "  %d\t%s\n", p.UserID, orDash(p.DisplayName))
		}
		w.Flush()
	}

	if len(v.Agenda) > 0 {
		fmt.Fprintln(out, "\nAgenda:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  #\tID\tNAME\tSTATUS\tPRESENTER\tDOCS")
		for _, item := range v.Agenda {
			fmt.Fprintf(w, "  %d\t%d\t%s\t%s\t%s\t%d\n",
				item.SortOrder, item.ID, truncate(item.Name, 40), item.Status, orDash(item.PresenterName), len(item.Documents))
		}
		w.Flush()
	}
	return nil
}

func newMeetingUpdateCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		fields     meetingFlags
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a meeting",
		Long:  "Replaces the meeting's fields. Flags not given keep their current values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("meeting", args[0])
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
			current, err := a.svc.GetMeeting(cmd.Context(), id)
			if err != nil {
				return err
			}
			r := recordOf(current.Meeting)
			if err := fields.overlay(cmd.Flags(), &r); err != nil {
				return err
			}
			m, err := a.svc.UpdateMeeting(cmd.Context(), actor, id, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated meeting %d (%s)\n", m.ID, m.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	fields.register(cmd.Flags())
	return cmd
}

func newMeetingDeleteCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meeting with its agenda and documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("meeting", args[0])
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
			if err := a.svc.DeleteMeeting(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted meeting %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}

func newMeetingParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Manage meeting participants",
	}

	cmd.AddCommand(newParticipantsSetCmd())
	cmd.AddCommand(newParticipantsAddCmd())
	cmd.AddCommand(newParticipantsRemoveCmd())
	return cmd
}

func newParticipantsSetCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
		users      []uint
	)

	cmd := &cobra.Command{
		Use:   "set <meeting-id>",
		Short: "Replace the participant set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("meeting", args[0])
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
			if err := a.svc.SetParticipants(cmd.Context(), actor, id, users); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meeting %d now has %d participants\n", id, len(users))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	cmd.Flags().UintSliceVar(&users, "users", nil, "participant user IDs")
	return cmd
}

func newParticipantsAddCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "add <meeting-id> <user-id>",
		Short: "Add one participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParticipantChange(cmd, configPath, actorID, args, true)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}

func newParticipantsRemoveCmd() *cobra.Command {
	var (
		configPath string
		actorID    uint
	)

	cmd := &cobra.Command{
		Use:   "remove <meeting-id> <user-id>",
		Short: "Remove one participant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParticipantChange(cmd, configPath, actorID, args, false)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actorID)
	return cmd
}

func runParticipantChange(cmd *cobra.Command, configPath string, actorID uint, args []string, add bool) error {
	id, err := parseID("meeting", args[0])
	if err != nil {
		return err
	}
	user, err := parseID("user", args[1])
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
	if add {
		err = a.svc.AddParticipant(cmd.Context(), actor, id, user)
	} else {
		err = a.svc.RemoveParticipant(cmd.Context(), actor, id, user)
	}
	if err != nil {
		return err
	}
	verb := "Removed"
	if add {
		verb = "Added"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s user %d on meeting %d\n", verb, user, id)
	return nil
}
