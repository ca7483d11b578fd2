package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/lowtide/hexplore/internal/explore"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSummaries renders a slice of exploration summaries in the requested format.
func formatSummaries(summaries []explore.Summary, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(summaries)
	case formatTable:
		return formatSummariesTable(summaries), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSummary renders a single exploration summary in the requested format.
func formatSummary(summary explore.Summary, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(summary)
	case formatTable:
		return formatSummaryDetail(summary), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(b) + "\n", nil
}

func formatSummariesTable(summaries []explore.Summary) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tPHASE\tPOSITION\tFOOD\tSTEPS\tAGE")

	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%d\t%s\n",
			s.PlayerID, s.Phase, positionString(s), s.Food, s.MaxFood, s.StepCount, s.Age.Round(1e9))
	}

	_ = w.Flush()
	return buf.String()
}

func positionString(s explore.Summary) string {
	return fmt.Sprintf("(%d,%d)", s.Position.X, s.Position.Y)
}

func formatSummaryDetail(s explore.Summary) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Explore ID:  %s\n", s.ID)
	fmt.Fprintf(&buf, "Player:      %d\n", s.PlayerID)
	fmt.Fprintf(&buf, "Phase:       %s\n", s.Phase)
	fmt.Fprintf(&buf, "Position:    %s\n", positionString(s))
	fmt.Fprintf(&buf, "Food:        %d/%d\n", s.Food, s.MaxFood)
	fmt.Fprintf(&buf, "Step count:  %d\n", s.StepCount)
	fmt.Fprintf(&buf, "Age:         %s\n", s.Age.Round(1e9))
	return buf.String()
}
