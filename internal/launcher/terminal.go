package launcher

import (
	"fmt"
	"sort"
	"strings"
)

// Terminal flavors.
const (
	FlavorTmux          = "tmux"
	FlavorGnomeTerminal = "gnome-terminal"
	FlavorKonsole       = "konsole"
	FlavorXterm         = "xterm"
	FlavorITerm         = "iterm"
	FlavorTerminalApp   = "terminal"
	FlavorWindowsTerm   = "wt"
	FlavorPowerShell    = "powershell"
	FlavorDefault       = "default"
)

// Template turns a window title and an inner shell command line into argv.
type Template func(title, inner string) []string

// flavorSpec is one row of the terminal table. Binary is what detection looks
// for on PATH; an empty Binary is never auto-detected.
type flavorSpec struct {
	Binary   string
	Template Template
}

// terminals is keyed by GOOS, then by flavor.
var terminals = map[string]map[string]flavorSpec{
	"linux": {
		FlavorTmux: {Binary: "tmux", Template: tmuxTemplate},
		FlavorGnomeTerminal: {Binary: "gnome-terminal", Template: func(title, inner string) []string {
			return []string{"gnome-terminal", "--title", title, "--", "sh", "-c", inner}
		}},
		FlavorKonsole: {Binary: "konsole", Template: func(title, inner string) []string {
			return []string{"konsole", "--new-tab", "-p", "tabtitle=" + title, "-e", "sh", "-c", inner}
		}},
		FlavorXterm: {Binary: "xterm", Template: func(title, inner string) []string {
			return []string{"xterm", "-T", title, "-e", "sh", "-c", inner}
		}},
		FlavorDefault: {Template: nohupTemplate},
	},
	"darwin": {
		FlavorTmux: {Binary: "tmux", Template: tmuxTemplate},
		FlavorITerm: {Template: func(_, inner string) []string {
			script := fmt.Sprintf("tell application \"iTerm\"\n"+
				"  create window with default profile\n"+
				"  tell current session of current window to write text %s\n"+
				"end tell", appleScriptString(inner))
			return []string{"osascript", "-e", script}
		}},
		FlavorTerminalApp: {Binary: "osascript", Template: func(_, inner string) []string {
			return []string{"osascript", "-e", "tell application \"Terminal\" to do script " + appleScriptString(inner)}
		}},
		FlavorDefault: {Template: nohupTemplate},
	},
	"windows": {
		FlavorWindowsTerm: {Binary: "wt", Template: func(title, inner string) []string {
			return []string{"wt", "-w", "0", "new-tab", "--title", title, "cmd", "/c", inner}
		}},
		FlavorPowerShell: {Binary: "powershell", Template: func(_, inner string) []string {
			arg := "'/c " + strings.ReplaceAll(inner, "'", "''") + "'"
			return []string{"powershell", "-NoProfile", "-Command", "Start-Process", "cmd", "-ArgumentList", arg}
		}},
		FlavorDefault: {Template: func(title, inner string) []string {
			return []string{"cmd", "/c", "start", title, "cmd", "/c", inner}
		}},
	},
}

// candidates is the PATH probe order per GOOS, after the environment hints.
var candidates = map[string][]string{
	"linux":   {FlavorGnomeTerminal, FlavorKonsole, FlavorXterm},
	"darwin":  {FlavorTerminalApp},
	"windows": {FlavorWindowsTerm, FlavorPowerShell},
}

func tmuxTemplate(title, inner string) []string {
	return []string{"tmux", "new-window", "-d", "-n", title, "sh", "-c", inner}
}

func nohupTemplate(_, inner string) []string {
	return []string{"nohup", "sh", "-c", inner}
}

// Flavors lists the flavors known for goos, sorted.
func Flavors(goos string) []string {
	table := terminals[goos]
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Detector picks the terminal flavor for a platform.
type Detector struct {
	GOOS     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

// Detect resolves the flavor: override, $TMUX, $TERM_PROGRAM (or $WT_SESSION
// on windows), the first candidate found on PATH, then the default.
func (d Detector) Detect(override string) (string, error) {
	table, ok := terminals[d.GOOS]
	if !ok {
		return "", fmt.Errorf("no terminal table for %s", d.GOOS)
	}
	if override = strings.ToLower(strings.TrimSpace(override)); override != "" {
		if _, ok := table[override]; !ok {
			return "", fmt.Errorf("terminal %q is not available on %s (known: %s)",
				override, d.GOOS, strings.Join(Flavors(d.GOOS), ", "))
		}
		return override, nil
	}

	if d.GOOS != "windows" && d.Getenv("TMUX") != "" {
		return FlavorTmux, nil
	}
	switch d.Getenv("TERM_PROGRAM") {
	case "tmux":
		if _, ok := table[FlavorTmux]; ok {
			return FlavorTmux, nil
		}
	case "iTerm.app":
		if _, ok := table[FlavorITerm]; ok {
			return FlavorITerm, nil
		}
	case "Apple_Terminal":
		if _, ok := table[FlavorTerminalApp]; ok {
			return FlavorTerminalApp, nil
		}
	}
	if d.GOOS == "windows" && d.Getenv("WT_SESSION") != "" {
		return FlavorWindowsTerm, nil
	}

	for _, name := range candidates[d.GOOS] {
		if _, err := d.LookPath(table[name].Binary); err == nil {
			return name, nil
		}
	}
	return FlavorDefault, nil
}

// Command renders the argv for flavor on goos.
func Command(goos, flavor, title, inner string) ([]string, error) {
	spec, ok := terminals[goos][flavor]
	if !ok {
		return nil, fmt.Errorf("unknown terminal %q for %s", flavor, goos)
	}
	return spec.Template(title, inner), nil
}

// InnerCommand builds the shell line a worker window runs: change into dir,
// feed the prompt to the backend and send combined output to the log.
func InnerCommand(goos, dir, backend, promptPath, logPath string) string {
	if goos == "windows" {
		return fmt.Sprintf(`cd /d "%s" && %s < "%s" > "%s" 2>&1`, dir, backend, promptPath, logPath)
	}
	return fmt.Sprintf("cd %s && %s < %s > %s 2>&1",
		shellQuote(dir), backend, shellQuote(promptPath), shellQuote(logPath))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
