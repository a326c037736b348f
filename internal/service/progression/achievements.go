package progression

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hundredk/challenge-tracker/internal/models"
)

// Metric names usable in achievement criteria.
const (
	MetricTotalEarnings  = "total_earnings"
	MetricActiveProjects = "active_projects"
)

// Trigger names besides the action types, which are triggers themselves.
const (
	TriggerFirstEarning  = "first_earning"
	TriggerRevenueUpdate = "revenue_update"
	TriggerProjectUpdate = "project_update"
	TriggerReconcile     = "reconcile"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Criteria is a single metric comparison.
type Criteria struct {
	Metric   string  `yaml:"metric" json:"metric"`
	Operator string  `yaml:"operator" json:"operator"`
	Value    float64 `yaml:"value" json:"value"`
}

// Achievement is a catalog entry.
type Achievement struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Emoji       string   `yaml:"emoji" json:"emoji"`
	Description string   `yaml:"description" json:"description"`
	Rarity      string   `yaml:"rarity" json:"rarity"`
	Criteria    Criteria `yaml:"criteria" json:"criteria"`
	Triggers    []string `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// AllowsTrigger reports whether trigger may unlock the achievement.
func (a Achievement) AllowsTrigger(trigger string) bool {
	if len(a.Triggers) == 0 {
		return true
	}
	for _, t := range a.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// Stats are the values achievement criteria are evaluated against.
type Stats struct {
	TotalEarnings  float64
	ActiveProjects int
}

func (s Stats) value(metric string) (float64, error) {
	switch metric {
	case MetricTotalEarnings:
		return s.TotalEarnings, nil
	case MetricActiveProjects:
		return float64(s.ActiveProjects), nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", metric)
	}
}

var catalog = mustLoadCatalog(catalogYAML)

// Catalog returns a copy of the achievement catalog in definition order.
func Catalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// FindAchievement looks up a catalog entry by id.
func FindAchievement(id string) (Achievement, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) ([]Achievement, error) {
	var doc struct {
		Achievements []Achievement `yaml:"achievements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse achievement catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Achievements))
	for _, a := range doc.Achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement without id")
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate achievement id: %s", a.ID)
		}
		seen[a.ID] = true

		switch a.Rarity {
		case models.RarityCommon, models.RarityRare, models.RarityEpic, models.RarityLegendary:
		default:
			return nil, fmt.Errorf("achievement %s: invalid rarity %q", a.ID, a.Rarity)
		}
		if _, err := (Stats{}).value(a.Criteria.Metric); err != nil {
			return nil, fmt.Errorf("achievement %s: %w", a.ID, err)
		}
		if _, err := compare(a.Criteria.Operator, 0, 0); err != nil {
			return nil, fmt.Errorf("achievement %s: %w", a.ID, err)
		}
	}
	return doc.Achievements, nil
}

func mustLoadCatalog(data []byte) []Achievement {
	achievements, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return achievements
}

// EvaluateAchievements returns the catalog entries that trigger may unlock,
// whose criteria hold for stats and that are not in unlocked. Order follows
// the catalog.
func EvaluateAchievements(trigger string, stats Stats, unlocked []string) []Achievement {
	have := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}

	var earned []Achievement
	for _, a := range catalog {
		if have[a.ID] || !a.AllowsTrigger(trigger) {
			continue
		}
		ok, err := Check(a.Criteria, stats)
		if err != nil || !ok {
			continue
		}
		earned = append(earned, a)
	}
	return earned
}

// Check evaluates one criteria against stats.
func Check(c Criteria, stats Stats) (bool, error) {
	actual, err := stats.value(c.Metric)
	if err != nil {
		return false, err
	}
	return compare(c.Operator, c.Value, actual)
}

// compare evaluates actual <operator> threshold.
func compare(operator string, threshold, actual float64) (bool, error) {
	switch operator {
	case "<":
		return actual < threshold, nil
	case "<=":
		return actual <= threshold, nil
	case ">":
		return actual > threshold, nil
	case ">=":
		return actual >= threshold, nil
	case "==":
		return actual == threshold, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}
