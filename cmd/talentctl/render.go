package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spec-kit/talent-client/internal/cache"
	"github.com/spec-kit/talent-client/internal/domain"
	"github.com/spec-kit/talent-client/internal/mutation"
	"github.com/spec-kit/talent-client/internal/service"
	"github.com/spec-kit/talent-client/internal/session"
)

func renderSession(snap session.Snapshot) string {
	if !snap.Authenticated() {
		if snap.Error != "" {
			return "Not signed in (" + snap.Error + ")."
		}
		return "Not signed in."
	}
	line := fmt.Sprintf("Signed in as %s <%s> [%s]", snap.User.FullName(), snap.User.Email, snap.User.Role)
	if id := snap.User.StudentIDOrEmpty(); id != "" {
		line += " student " + id
	}
	return line
}

func renderFieldErrors(details map[string]any) string {
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, "  %s: %v\n", field, details[field])
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderJobs(state cache.State[domain.Job]) string {
	var b strings.Builder
	if len(state.Items) == 0 && state.Status == cache.StatusSucceeded {
		b.WriteString("No jobs.\n")
	}
	if len(state.Items) > 0 {
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tBUSINESS\tLOCATION\tAPPLICANTS")
		for _, job := range state.Items {
			business := ""
			if job.Business != nil {
				business = job.Business.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", job.ID, job.Title, business, job.Location, len(job.ApplicationsOrEmpty()))
		}
		_ = w.Flush()
	}
	b.WriteString(staleNote(state.Status, state.Error, len(state.Items) > 0))
	return b.String()
}

func renderJobView(view service.JobView) string {
	var b strings.Builder
	if view.Job == nil {
		b.WriteString(staleNote(view.State.Status, view.State.Error, false))
		return b.String()
	}
	job := view.Job
	fmt.Fprintf(&b, "%s (%s)\n", job.Title, job.ID)
	if job.Business != nil {
		fmt.Fprintf(&b, "Business: %s\n", job.Business.Name)
	}
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	if skills := job.SkillsOrEmpty(); len(skills) > 0 {
		fmt.Fprintf(&b, "Skills:   %s\n", strings.Join(skills, ", "))
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "\n%s\n\n", job.Description)
	}
	fmt.Fprintf(&b, "Applicants: %d\n", len(job.ApplicationsOrEmpty()))
	if view.Button.Visible {
		fmt.Fprintf(&b, "[%s]", view.Button.Label)
		if view.Button.Error != "" {
			fmt.Fprintf(&b, " last attempt failed: %s", view.Button.Error)
		}
		b.WriteString("\n")
	}
	b.WriteString(staleNote(view.State.Status, view.State.Error, true))
	return b.String()
}

func renderStudents(state cache.State[domain.Student]) string {
	var b strings.Builder
	if len(state.Items) > 0 {
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNIVERSITY\tSKILLS")
		for _, s := range state.Items {
			fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", s.ID, s.FirstName, s.LastName, s.University, strings.Join(s.SkillsOrEmpty(), ", "))
		}
		_ = w.Flush()
	} else if state.Status == cache.StatusSucceeded {
		b.WriteString("No students.\n")
	}
	b.WriteString(staleNote(state.Status, state.Error, len(state.Items) > 0))
	return b.String()
}

func renderStudent(state cache.State[domain.Student]) string {
	var b strings.Builder
	if s := state.Current; s != nil {
		fmt.Fprintf(&b, "%s %s (%s)\n", s.FirstName, s.LastName, s.ID)
		if s.University != "" {
			fmt.Fprintf(&b, "University: %s\n", s.University)
		}
		if skills := s.SkillsOrEmpty(); len(skills) > 0 {
			fmt.Fprintf(&b, "Skills:     %s\n", strings.Join(skills, ", "))
		}
		if s.Bio != "" {
			fmt.Fprintf(&b, "\n%s\n", s.Bio)
		}
	}
	b.WriteString(staleNote(state.Status, state.Error, state.Current != nil))
	return b.String()
}

func renderService(state cache.State[domain.Service]) string {
	var b strings.Builder
	if s := state.Current; s != nil {
		fmt.Fprintf(&b, "%s (%s)\n", s.Title, s.ID)
		if s.Price > 0 {
			fmt.Fprintf(&b, "Price: %.2f\n", s.Price)
		}
		if s.Student != nil {
			fmt.Fprintf(&b, "Offered by %s %s\n", s.Student.FirstName, s.Student.LastName)
		}
		if s.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", s.Description)
		}
	}
	b.WriteString(staleNote(state.Status, state.Error, state.Current != nil))
	return b.String()
}

func renderInbox(view service.InboxView, userID string) string {
	var b strings.Builder
	if len(view.State.Conversations) == 0 && view.State.Status == cache.StatusSucceeded {
		b.WriteString("No conversations.\n")
	}
	for _, conv := range view.State.Conversations {
		others := make([]string, 0, len(conv.ParticipantIDs))
		for _, id := range conv.ParticipantIDs {
			if id != userID {
				others = append(others, id)
			}
		}
		fmt.Fprintf(&b, "== %s with %s\n", conv.ID, strings.Join(others, ", "))
		for _, msg := range view.MessagesByConversation[conv.ID] {
			who := msg.SenderID
			if who == userID {
				who = "me"
			}
			fmt.Fprintf(&b, "  %s  %s: %s\n", msg.Timestamp.Local().Format("2006-01-02 15:04"), who, msg.Body)
		}
	}
	if view.HasUnread {
		b.WriteString("You have unread messages.\n")
	}
	b.WriteString(staleNote(view.State.Status, view.State.Error, len(view.State.Conversations) > 0))
	return b.String()
}

func renderOutcome(out mutation.Outcome) string {
	switch {
	case out.OK && out.Message != nil:
		return "Message sent."
	case out.OK:
		return "Application submitted."
	case out.Skipped:
		return "Skipped: " + out.Error
	case out.Retryable:
		return "Failed: " + out.Error + " (you can try again)"
	default:
		return "Failed: " + out.Error
	}
}

func renderNotifications(notes []service.Notification) string {
	var b strings.Builder
	for _, note := range notes {
		fmt.Fprintf(&b, "* [%s] %s\n", note.Kind, note.Message)
	}
	return b.String()
}

// staleNote explains a failed or pending fetch next to whatever data is still shown.
func staleNote(status cache.Status, errMsg string, hasData bool) string {
	switch status {
	case cache.StatusFailed:
		if hasData {
			return "(showing cached data; refresh failed: " + errMsg + ")\n"
		}
		return "Error: " + errMsg + "\n"
	case cache.StatusLoading:
		return "(still loading)\n"
	default:
		return ""
	}
}

func stateError(status cache.Status, errMsg string) error {
	if status == cache.StatusFailed {
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}
