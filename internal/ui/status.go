package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/josephgoksu/guidedmodules/internal/resolver"
	"github.com/josephgoksu/guidedmodules/models"
)

// StatusIcon returns the marker for a question status.
func StatusIcon(st *resolver.QuestionStatus) string {
	switch st.Status {
	case resolver.StatusAnswered:
		if st.Skipped {
			return Icon("–", StyleAnswered)
		}
		return Icon("✓", StyleAnswered)
	case resolver.StatusImputed:
		return Icon("=", StyleImputed)
	case resolver.StatusCanAnswer:
		return Icon("?", StyleCanAnswer)
	}
	return Icon("·", StyleUnreachable)
}

// FormatValue renders a resolved value on one line.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if name, ok := x["name"].(string); ok && x["sha256"] != nil {
			return name
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// RenderResolution lists every question of a task with its status and value.
func RenderResolution(t *models.Task, res *resolver.Resolution, width int) string {
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(t.Title))
	sb.WriteString(StyleSubtle.Render(fmt.Sprintf(" %s · %s", t.ID, res.Module.Ref())))
	if t.IsDeleted() {
		sb.WriteString(" " + StyleError.Render("[deleted]"))
	}
	sb.WriteString("\n\n")

	valueWidth := width - 30
	if valueWidth < 20 {
		valueWidth = 20
	}
	for _, st := range res.Statuses {
		value := ""
		switch {
		case st.Skipped:
			value = StyleSubtle.Render("(skipped)")
		case st.Status == resolver.StatusImputed:
			value = StyleSubtle.Render(Truncate(FormatValue(st.Value), valueWidth) + " (" + st.ImputedBy + ")")
		case st.Status == resolver.StatusAnswered:
			value = Truncate(FormatValue(st.Value), valueWidth)
		}
		fmt.Fprintf(&sb, " %s %s %s\n", StatusIcon(st), pad(st.Key(), 20), value)
	}

	sb.WriteString("\n")
	if res.Complete {
		sb.WriteString(StyleSuccess.Render("complete"))
	} else {
		sb.WriteString(StyleWarning.Render(fmt.Sprintf("%d of %d questions settled", len(res.Answered)+len(res.Imputed), len(res.Statuses))))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Progress returns "settled/total" for a resolution.
func Progress(res *resolver.Resolution) string {
	return fmt.Sprintf("%d/%d", len(res.Answered)+len(res.Imputed), len(res.Statuses))
}
