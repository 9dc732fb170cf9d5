package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"warden/internal/models"
)

// DefaultSeverityTable is the stock warning-count ladder.
const DefaultSeverityTable = "0:none,1:low,2:medium,4:high,5:critical"

// Step maps every warning count at or above MinWarnings to Severity,
// until the next step takes over.
type Step struct {
	MinWarnings int
	Severity    models.Severity
}

// SeverityTable is an ordered, monotone list of steps starting at zero warnings.
type SeverityTable []Step

// ParseSeverityTable reads a comma-separated list of count:severity pairs.
// Example: "0:none,1:low,2:medium,4:high,5:critical"
func ParseSeverityTable(raw string) (SeverityTable, error) {
	var table SeverityTable
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("severity step %q: want count:severity", pair)
		}
		count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("severity step %q: %w", pair, err)
		}
		table = append(table, Step{
			MinWarnings: count,
			Severity:    models.Severity(strings.ToLower(strings.TrimSpace(parts[1]))),
		})
	}

	sort.SliceStable(table, func(i, j int) bool { return table[i].MinWarnings < table[j].MinWarnings })
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// MustParseSeverityTable is ParseSeverityTable for package-level defaults.
func MustParseSeverityTable(raw string) SeverityTable {
	table, err := ParseSeverityTable(raw)
	if err != nil {
		panic(err)
	}
	return table
}

// Validate checks the table starts at zero and that both thresholds and
// severities strictly increase.
func (t SeverityTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("severity table is empty")
	}
	if t[0].MinWarnings != 0 {
		return fmt.Errorf("severity table must start at 0 warnings, starts at %d", t[0].MinWarnings)
	}
	for i, step := range t {
		if step.Severity.Rank() < 0 {
			return fmt.Errorf("unknown severity %q", step.Severity)
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if step.MinWarnings <= prev.MinWarnings {
			return fmt.Errorf("duplicate threshold %d in severity table", step.MinWarnings)
		}
		if step.Severity.Rank() <= prev.Severity.Rank() {
			return fmt.Errorf("severity table is not monotone: %s at %d follows %s at %d",
				step.Severity, step.MinWarnings, prev.Severity, prev.MinWarnings)
		}
	}
	return nil
}

// For returns the severity for a warning count.
func (t SeverityTable) For(warnings int) models.Severity {
	sev := models.SeverityNone
	for _, step := range t {
		if warnings < step.MinWarnings {
			break
		}
		sev = step.Severity
	}
	return sev
}

// String renders the table in the form ParseSeverityTable accepts.
func (t SeverityTable) String() string {
	parts := make([]string, 0, len(t))
	for _, step := range t {
		parts = append(parts, fmt.Sprintf("%d:%s", step.MinWarnings, step.Severity))
	}
	return strings.Join(parts, ",")
}
