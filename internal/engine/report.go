package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// selfReport is the JSON status block an engine may end its reply with.
type selfReport struct {
	Status       string   `json:"status"`
	Notes        string   `json:"notes"`
	FilesCreated []string `json:"files_created"`
	TestResult   string   `json:"test_result"`
}

// Repairs for the mistakes models make when hand-writing JSON.
var (
	trailingCommaRegex  = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)
	singleQuoteValRegex = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'(\s*[,}\]])`)
	missingCommaRegex   = regexp.MustCompile(`(["\d\]}]|true|false|null)\s*\n\s*("\w[^"]*"\s*:)`)
)

// parseSelfReport finds the last JSON object in output that carries a
// terminal status. ok is false when the reply has none.
func parseSelfReport(output string) (rep selfReport, ok bool) {
	text := stripFences(output)
	for end := len(text); end > 0; {
		start := strings.LastIndex(text[:end], "{")
		if start < 0 {
			break
		}
		if r, err := decodeReport(text[start:]); err == nil {
			if st, err := task.ParseStatus(r.Status); err == nil && st.IsTerminal() {
				return r, true
			}
		}
		end = start
	}
	return selfReport{}, false
}

// applySelfReport folds a self-reported outcome into res. A reply that says
// it failed is a failed result even though the engine itself succeeded.
func applySelfReport(res *task.TaskResult, output string) {
	rep, ok := parseSelfReport(output)
	if !ok {
		res.Status = task.StatusCompleted
		res.Notes = lastLine(output)
		return
	}
	res.Status, _ = task.ParseStatus(rep.Status)
	res.Notes = strings.TrimSpace(rep.Notes)
	if res.Notes == "" {
		res.Notes = lastLine(output)
	}
	res.FilesCreated = rep.FilesCreated
	res.TestResult = rep.TestResult
	if res.Status == task.StatusFailed {
		res.Error = res.Notes
	}
}

func decodeReport(s string) (selfReport, error) {
	var rep selfReport
	dec := json.NewDecoder(strings.NewReader(s))
	err := dec.Decode(&rep)
	if err == nil {
		return rep, nil
	}
	repaired := repairJSON(s)
	if repaired == s {
		return rep, fmt.Errorf("parse status block: %w", err)
	}
	if err := json.NewDecoder(strings.NewReader(repaired)).Decode(&rep); err != nil {
		return rep, fmt.Errorf("parse status block: %w", err)
	}
	return rep, nil
}

func repairJSON(s string) string {
	s = escapeControlChars(s)
	s = missingCommaRegex.ReplaceAllString(s, `$1, $2`)
	s = trailingCommaRegex.ReplaceAllString(s, `$1`)
	s = singleQuoteKeyRegex.ReplaceAllString(s, `$1"$2"$3`)
	return singleQuoteValRegex.ReplaceAllStringFunc(s, func(m string) string {
		parts := singleQuoteValRegex.FindStringSubmatch(m)
		val := strings.ReplaceAll(parts[2], `\'`, `'`)
		val = strings.ReplaceAll(val, `"`, `\"`)
		return parts[1] + `"` + val + `"` + parts[3]
	})
}

// escapeControlChars escapes raw newlines and tabs inside JSON strings.
func escapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString && c == '\n':
			sb.WriteString(`\n`)
			continue
		case inString && c == '\t':
			sb.WriteString(`\t`)
			continue
		case inString && c == '\r':
			sb.WriteString(`\r`)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}
