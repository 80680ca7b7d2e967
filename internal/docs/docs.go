// Package docs parses checklist-style project documentation into structured
// records.
//
// Two documents share one line grammar: a test-case checklist
//
//	- [x] **TC-CORE-001** - Basic add (Automated, High)
//
// and a feature checklist
//
//	- [ ] **FT-API-001** Login endpoint - Authenticates users (Criteria: returns 401 on bad password)
//
// The checkbox mark maps x to completed and ~ or blank to pending. Indented
// lines are sub-items of the most recently seen top-level id. Parsing is
// tolerant: lines that do not match the grammar are ignored.
package docs

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// State is the lifecycle state of a documentation entry.
type State string

const (
	StateCompleted State = "completed"
	StatePending   State = "pending"
)

// TestCase is one parsed test-case checklist entry.
type TestCase struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	State    State  `json:"state"`
	ExecType string `json:"exec_type"`
	Priority string `json:"priority"`
	SubItem  bool   `json:"sub_item,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// Feature is one parsed feature checklist entry.
type Feature struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Criteria    string `json:"criteria"`
	State       State  `json:"state"`
	SubItem     bool   `json:"sub_item,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`

	// TestCaseIDs holds test-case ids referenced near this feature in the
	// raw document, filled in by AttachTestCaseRefs.
	TestCaseIDs []string `json:"test_case_ids,omitempty"`
}

// DefaultRefWindow is the character window scanned after a feature id for
// test-case references.
const DefaultRefWindow = 500

var (
	testCaseLine = regexp.MustCompile(
		`^(\s*)- \[([x~ ]?)\] \*\*([A-Z][A-Z0-9]*-[A-Za-z0-9-]+)\*\* - (.+?) \(([^,()]+), ([^()]+)\)\s*$`)

	featureLine = regexp.MustCompile(
		`^(\s*)- \[([x~ ]?)\] \*\*([A-Z][A-Z0-9]*-[A-Za-z0-9-]+)\*\* (.+?) - (.+?) \(Criteria: (.+)\)\s*$`)
)

// Parser extracts structured records from documentation text.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a documentation parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseTestCasesFile reads and parses a test-case checklist document.
// The returned error is the file access error, if any; callers decide whether
// a missing document is fatal for the requested analysis mode.
func (p *Parser) ParseTestCasesFile(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Warn("test-case document unreadable", "path", path, "error", err)
		return nil, err
	}
	return p.ParseTestCases(string(data)), nil
}

// ParseTestCases parses test-case entries out of checklist text.
func (p *Parser) ParseTestCases(content string) []TestCase {
	var cases []TestCase
	currentParent := ""

	for _, line := range strings.Split(content, "\n") {
		m := testCaseLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		sub := m[1] != ""
		tc := TestCase{
			ID:       m[3],
			Title:    strings.TrimSpace(m[4]),
			State:    markToState(m[2]),
			ExecType: strings.TrimSpace(m[5]),
			Priority: strings.TrimSpace(m[6]),
			SubItem:  sub,
		}
		if sub {
			tc.ParentID = currentParent
		} else {
			currentParent = tc.ID
		}
		cases = append(cases, tc)
	}

	return cases
}

// ParseFeaturesFile reads and parses a feature checklist document.
func (p *Parser) ParseFeaturesFile(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Warn("feature document unreadable", "path", path, "error", err)
		return nil, err
	}
	return p.ParseFeatures(string(data)), nil
}

// ParseFeatures parses feature entries out of checklist text.
func (p *Parser) ParseFeatures(content string) []Feature {
	var features []Feature
	currentParent := ""

	for _, line := range strings.Split(content, "\n") {
		m := featureLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		sub := m[1] != ""
		ft := Feature{
			ID:          m[3],
			Title:       strings.TrimSpace(m[4]),
			Description: strings.TrimSpace(m[5]),
			Criteria:    strings.TrimSpace(m[6]),
			State:       markToState(m[2]),
			SubItem:     sub,
		}
		if sub {
			ft.ParentID = currentParent
		} else {
			currentParent = ft.ID
		}
		features = append(features, ft)
	}

	return features
}

// ExtractFeatureTestRefs scans a fixed character window after each feature-id
// occurrence in raw text for test-case ids, producing a feature to test-case
// multimap. Duplicate references within one feature are collapsed, keeping
// first-seen order.
func ExtractFeatureTestRefs(raw string, window int, featureID, testCaseID *regexp.Regexp) map[string][]string {
	if window <= 0 {
		window = DefaultRefWindow
	}

	refs := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	for _, loc := range featureID.FindAllStringIndex(raw, -1) {
		ftID := raw[loc[0]:loc[1]]
		end := loc[1] + window
		if end > len(raw) {
			end = len(raw)
		}

		for _, tcID := range testCaseID.FindAllString(raw[loc[1]:end], -1) {
			if seen[ftID] == nil {
				seen[ftID] = make(map[string]bool)
			}
			if seen[ftID][tcID] {
				continue
			}
			seen[ftID][tcID] = true
			refs[ftID] = append(refs[ftID], tcID)
		}
	}

	return refs
}

// AttachTestCaseRefs fills each feature's TestCaseIDs from the raw document
// text, using the window extraction above. Features whose id never occurs in
// the raw text (or with no nearby test-case ids) keep a nil slice.
func AttachTestCaseRefs(features []Feature, raw string, window int, featureID, testCaseID *regexp.Regexp) {
	refs := ExtractFeatureTestRefs(raw, window, featureID, testCaseID)
	for i := range features {
		features[i].TestCaseIDs = refs[features[i].ID]
	}
}

// markToState maps a checkbox mark to a lifecycle state.
func markToState(mark string) State {
	if mark == "x" {
		return StateCompleted
	}
	return StatePending
}
