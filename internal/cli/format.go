package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"confguide/internal/agenda"
	"confguide/internal/model"
)

var (
	dateColor  = color.New(color.FgCyan, color.Bold)
	slotColor  = color.New(color.FgYellow)
	titleColor = color.New(color.Bold)
	dimColor   = color.New(color.FgHiBlack)
	favColor   = color.New(color.FgRed)
)

const localLayout = "2006-01-02 15:04"

// parseAt accepts RFC 3339 or a wall-clock time in loc.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC 3339 or %q", s, localLayout)
	}
	return t, nil
}

func formatSpan(r agenda.TimeRange, loc *time.Location) string {
	return r.StartTime().In(loc).Format("15:04") + "-" + r.EndTime().In(loc).Format("15:04")
}

func itemLine(it model.AgendaItem, fav bool) string {
	var b strings.Builder
	if fav {
		b.WriteString(favColor.Sprint("♥ "))
	} else {
		b.WriteString("  ")
	}
	b.WriteString(titleColor.Sprint(it.Topic))
	if it.Location != "" {
		b.WriteString(dimColor.Sprint("  @ " + it.Location))
	}
	b.WriteString(dimColor.Sprint("  [" + it.ID + "]"))
	return b.String()
}

// writeAgenda prints organized entries as a day/slot outline.
func writeAgenda(w io.Writer, entries []agenda.Entry, loc *time.Location, favs map[string]bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No sessions."))
		return
	}
	for _, e := range entries {
		switch e.Kind {
		case agenda.KindDate:
			day := time.UnixMilli(e.Date.Date).In(loc)
			fmt.Fprintln(w, dateColor.Sprint(day.Format("Monday, January 2")))
		case agenda.KindTimeGroup:
			fmt.Fprintln(w, " "+slotColor.Sprint(formatSpan(agenda.TimeRange{Start: e.Group.Start, End: e.Group.End}, loc)))
		case agenda.KindItem:
			fmt.Fprintln(w, "  "+itemLine(*e.Item, favs[e.Item.ID]))
		}
	}
}

// writeGroups prints now/next groups under a heading.
func writeGroups(w io.Writer, heading string, groups []agenda.Group, loc *time.Location, favs map[string]bool) {
	fmt.Fprintln(w, dateColor.Sprint(heading))
	if len(groups) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("  nothing scheduled"))
		return
	}
	for _, g := range groups {
		fmt.Fprintln(w, " "+slotColor.Sprint(formatSpan(g.Range, loc)))
		for _, it := range g.Items {
			fmt.Fprintln(w, "  "+itemLine(it, favs[it.ID]))
		}
	}
}

// itemMarkdown is the document rendered by `show`.
func itemMarkdown(it model.AgendaItem, speakers []model.Speaker, fav bool, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("# " + it.Topic + "\n\n")
	fmt.Fprintf(&b, "**When:** %s, %s  \n", it.Start.In(loc).Format("Mon Jan 2"), formatSpan(agenda.RangeOf(it), loc))
	if it.Location != "" {
		b.WriteString("**Where:** " + it.Location + "  \n")
	}
	if fav {
		b.WriteString("**Favorite** ♥  \n")
	}
	if len(speakers) > 0 {
		b.WriteString("\n## Speakers\n\n")
		for _, sp := range speakers {
			line := "- **" + sp.Name + "**"
			if role := strings.Trim(sp.Title+", "+sp.Company, ", "); role != "" {
				line += " (" + role + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	if d := strings.TrimSpace(it.Description); d != "" {
		b.WriteString("\n" + d + "\n")
	}
	return b.String()
}

// renderMarkdown returns doc unchanged when glamour fails.
func renderMarkdown(doc string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
