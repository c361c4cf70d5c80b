package ui

import (
	"os/exec"
	"strings"
)

// DefaultPager is used when neither TASKFLEET_PAGER nor PAGER is set.
const DefaultPager = "less"

// PagerCommand builds the command that shows path: $TASKFLEET_PAGER, then
// $PAGER, then less. Pager values may carry arguments ("less -R").
func PagerCommand(getenv func(string) string, path string) *exec.Cmd {
	pager := strings.TrimSpace(getenv("TASKFLEET_PAGER"))
	if pager == "" {
		pager = strings.TrimSpace(getenv("PAGER"))
	}
	if pager == "" {
		pager = DefaultPager
	}
	fields := strings.Fields(pager)
	return exec.Command(fields[0], append(fields[1:], path)...)
}
