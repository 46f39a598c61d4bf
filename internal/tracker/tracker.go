// Package tracker maintains per-tool reliability statistics across
// process invocations. Stats are reporting-only and never gate behavior.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/openclaw/bladerunner/internal/logging"
)

// minRankedCalls is the call count below which a tool is reported as
// untested rather than ranked by band.
const minRankedCalls = 3

// ToolStat is the aggregate record for one tool.
type ToolStat struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	LastUsed   string         `json:"last_used,omitempty"`
	Errors     map[string]int `json:"errors"`
}

// SuccessRate returns successes/calls, or 0 with no calls.
func (s ToolStat) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}

// RankEntry is one row of the reliability ranking.
type RankEntry struct {
	Tool        string  `json:"tool"`
	SuccessRate float64 `json:"success_rate"`
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
}

// Health is the reporting band for one tool.
type Health string

const (
	HealthUntested  Health = "untested"
	HealthExcellent Health = "excellent"
	HealthFair      Health = "fair"
	HealthPoor      Health = "poor"
	HealthFailing   Health = "failing"
)

// SessionStat counts a single process's usage of one tool.
type SessionStat struct {
	Calls     int
	Successes int
	Failures  int
}

// Tracker records tool outcomes to a JSON stats file. The file is
// shared across processes; saves use an atomic temp-then-rename replace
// so concurrent writers cannot leave a truncated store behind.
type Tracker struct {
	path    string
	enabled bool
	log     *logging.Logger
	stats   map[string]*ToolStat
	session map[string]*SessionStat
	now     func() time.Time
}

// New opens (or initializes) the stats store at dir/tool_stats.json.
// An unreadable store is reinitialized empty and logged, never fatal.
func New(dir string, enabled bool, log *logging.Logger) *Tracker {
	t := &Tracker{
		path:    filepath.Join(dir, "tool_stats.json"),
		enabled: enabled,
		log:     log,
		stats:   make(map[string]*ToolStat),
		session: make(map[string]*SessionStat),
		now:     time.Now,
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &t.stats); err != nil {
		if t.log != nil {
			t.log.StoreRecovered(t.path, err)
		}
		t.stats = make(map[string]*ToolStat)
	}
}

// Record notes one tool call outcome and persists the store. errorKind
// is the coarse failure class (empty on success).
func (t *Tracker) Record(tool string, success bool, errorKind string) {
	if !t.enabled {
		return
	}

	stat, ok := t.stats[tool]
	if !ok {
		stat = &ToolStat{Errors: make(map[string]int)}
		t.stats[tool] = stat
	}
	if stat.Errors == nil {
		stat.Errors = make(map[string]int)
	}

	stat.Total++
	stat.LastUsed = t.now().UTC().Format(time.RFC3339)
	if success {
		stat.Successful++
	} else {
		stat.Failed++
		if errorKind != "" {
			stat.Errors[errorKind]++
		}
	}

	sess, ok := t.session[tool]
	if !ok {
		sess = &SessionStat{}
		t.session[tool] = sess
	}
	sess.Calls++
	if success {
		sess.Successes++
	} else {
		sess.Failures++
	}

	if err := t.save(); err != nil && t.log != nil {
		t.log.Warn("stats_save_failed", map[string]interface{}{
			"path":  t.path,
			"error": err.Error(),
		})
	}
}

// save writes the store atomically: temp file in the same directory,
// then rename over the target.
func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.stats, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tool_stats-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, t.path)
}

// SuccessRate returns the rate for a tool. ok is false for tools with
// no recorded calls; the rate is then zero.
func (t *Tracker) SuccessRate(tool string) (float64, bool) {
	stat, found := t.stats[tool]
	if !found || stat.Total == 0 {
		return 0, false
	}
	return stat.SuccessRate(), true
}

// Stat returns a copy of one tool's record.
func (t *Tracker) Stat(tool string) (ToolStat, bool) {
	stat, found := t.stats[tool]
	if !found {
		return ToolStat{}, false
	}
	return *stat, true
}

// Ranking returns all tools ordered by success rate descending, ties
// broken by call count descending, then name for determinism.
func (t *Tracker) Ranking() []RankEntry {
	entries := make([]RankEntry, 0, len(t.stats))
	for name, stat := range t.stats {
		entries = append(entries, RankEntry{
			Tool:        name,
			SuccessRate: stat.SuccessRate(),
			Total:       stat.Total,
			Successful:  stat.Successful,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SuccessRate != entries[j].SuccessRate {
			return entries[i].SuccessRate > entries[j].SuccessRate
		}
		if entries[i].Total != entries[j].Total {
			return entries[i].Total > entries[j].Total
		}
		return entries[i].Tool < entries[j].Tool
	})
	return entries
}

// HealthFor maps a tool's record to its reporting band.
func (t *Tracker) HealthFor(tool string) Health {
	stat, found := t.stats[tool]
	if !found || stat.Total < minRankedCalls {
		return HealthUntested
	}
	rate := stat.SuccessRate()
	switch {
	case rate >= 0.9:
		return HealthExcellent
	case rate >= 0.7:
		return HealthFair
	case rate >= 0.5:
		return HealthPoor
	default:
		return HealthFailing
	}
}

// HealthReport returns band plus percentage for every tracked tool.
func (t *Tracker) HealthReport() map[string]string {
	report := make(map[string]string, len(t.stats))
	for name, stat := range t.stats {
		report[name] = fmt.Sprintf("%s (%.0f%%)", t.HealthFor(name), stat.SuccessRate()*100)
	}
	return report
}

// Recommendation names the most reliable tool when its success rate is
// at least 80% over three or more calls, or "" when none qualifies.
func (t *Tracker) Recommendation() string {
	var best RankEntry
	for _, e := range t.Ranking() {
		if e.Total >= minRankedCalls {
			best = e
			break
		}
	}
	if best.Tool == "" || best.SuccessRate < 0.8 {
		return ""
	}
	return fmt.Sprintf("Recommend: %s (%.0f%% success rate)", best.Tool, best.SuccessRate*100)
}

// SessionStats returns this process's per-tool counters.
func (t *Tracker) SessionStats() map[string]SessionStat {
	out := make(map[string]SessionStat, len(t.session))
	for name, s := range t.session {
		out[name] = *s
	}
	return out
}

// Tools returns tracked tool names sorted alphabetically.
func (t *Tracker) Tools() []string {
	names := make([]string, 0, len(t.stats))
	for name := range t.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
