// Package steps provides step definitions, statuses and dependency validation
// for the content autopilot pipeline.
package steps

import (
	"fmt"
)

// Step names
const (
	RefreshOpportunities = "refresh_opportunities"
	PickKeyword          = "pick_keyword"
	GenerateArticle      = "generate_article"
	PublishAndIndex      = "publish_and_index"
)

// Step categories
const (
	CategoryDiscovery    = "discovery"
	CategoryProduction   = "production"
	CategoryDistribution = "distribution"
)

// Status is the caller-visible state of a step within one run.
type Status string

// Status values
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Satisfied reports whether a step in this status unblocks its dependents.
// A skipped step was satisfied by an earlier invocation.
func (s Status) Satisfied() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Number       int
	Title        string
	Category     string
	Dependencies []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	RefreshOpportunities: {
		Name:         RefreshOpportunities,
		Number:       1,
		Title:        "Refresh opportunities",
		Category:     CategoryDiscovery,
		Dependencies: []string{},
	},
	PickKeyword: {
		Name:         PickKeyword,
		Number:       2,
		Title:        "Pick keyword",
		Category:     CategoryDiscovery,
		Dependencies: []string{RefreshOpportunities},
	},
	GenerateArticle: {
		Name:         GenerateArticle,
		Number:       3,
		Title:        "Generate article",
		Category:     CategoryProduction,
		Dependencies: []string{PickKeyword},
	},
	PublishAndIndex: {
		Name:         PublishAndIndex,
		Number:       4,
		Title:        "Publish and index",
		Category:     CategoryDistribution,
		Dependencies: []string{GenerateArticle},
	},
}

// Order lists the steps in execution order.
var Order = []string{RefreshOpportunities, PickKeyword, GenerateArticle, PublishAndIndex}

// UnitSteps are the steps repeated once per article; refresh runs once per batch.
var UnitSteps = []string{PickKeyword, GenerateArticle, PublishAndIndex}

// Number returns the 1-based position of a step, or 0 for unknown names.
func Number(name string) int {
	return StepRegistry[name].Number
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of a step is satisfied in states.
func ValidateDependencies(states map[string]Status, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !states[dep].Satisfied() {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// GetAvailableSteps returns steps that have not run yet and whose dependencies are met, in order.
func GetAvailableSteps(states map[string]Status) []string {
	var available []string
	for _, name := range Order {
		switch states[name] {
		case StatusCompleted, StatusSkipped, StatusInProgress:
			continue
		}
		if ValidateDependencies(states, name) != nil {
			continue
		}
		available = append(available, name)
	}
	return available
}
