package schemas

import "time"

// -- Script Artifact Schemas --

// ConsoleLog represents a single entry written through the script console.
type ConsoleLog struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// ScriptResult is what a script run reports back to the CLI.
type ScriptResult struct {
	Profile     string       `json:"profile"`
	URL         string       `json:"url"`
	Charset     string       `json:"charset"`
	Value       interface{}  `json:"value"`
	ConsoleLogs []ConsoleLog `json:"console_logs"`
	Duration    string       `json:"duration"`
}

// ProfileInfo describes one built-in browser profile.
type ProfileInfo struct {
	Key       string   `json:"key"`
	Vendor    string   `json:"vendor"`
	Version   string   `json:"version"`
	UserAgent string   `json:"user_agent"`
	Features  []string `json:"features"`
}

// ClassInfo describes one script class available under a profile.
type ClassInfo struct {
	Name      string   `json:"name"`
	Parent    string   `json:"parent,omitempty"`
	Ancestors []string `json:"ancestors,omitempty"`
	DOMTypes  []string `json:"dom_types,omitempty"`
	Alias     bool     `json:"alias,omitempty"`
	Members   []string `json:"members"`
}

// CharsetReport describes one charset decision.
type CharsetReport struct {
	Kind      string `json:"kind"`
	Charset   string `json:"charset"`
	Source    string `json:"source"`
	BOMLength int    `json:"bom_length"`
	Preview   string `json:"preview,omitempty"`
}
