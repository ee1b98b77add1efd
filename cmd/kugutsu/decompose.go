package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kugutsu/pipeline/internal/agent"
	"github.com/kugutsu/pipeline/pkg/models"
)

// planningPrompt asks the Agent Executor to turn a single natural-language
// request into a dependency-annotated task list. Decomposition quality is
// explicitly out of the core's scope (spec §1): this is the thin bridge
// the CLI needs to produce the task list the Pipeline Manager consumes,
// not a restatement of the core's design.
const planningPrompt = `You are planning parallel engineering work for the following request:

%s

Break it into the smallest set of independent, parallelizable tasks. Respond
with ONLY a JSON array, no prose, where each element has:
  "id":          a short local identifier unique within this array (e.g. "t1")
  "title":       a short imperative title
  "description": what the task must accomplish
  "task_type":   one of "feature", "bugfix", "refactor", "test", "docs"
  "priority":    one of "high", "medium", "low"
  "depends_on":  array of local "id" values (from this same array) that must
                 merge before this task can start; empty if none`

type planTask struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TaskType    string   `json:"task_type"`
	Priority    string   `json:"priority"`
	DependsOn   []string `json:"depends_on"`
}

// planTasks asks executor to decompose request into a *models.Task list,
// assigning stable UUIDs and translating the plan's local dependency IDs
// into those UUIDs.
func planTasks(ctx context.Context, executor agent.Executor, request string) ([]*models.Task, error) {
	prompt := fmt.Sprintf(planningPrompt, request)
	messages, results := executor.Execute(ctx, prompt, agent.Options{MaxTurns: 1})

	var transcript strings.Builder
	for m := range messages {
		if m.Kind == agent.MessageAssistantText {
			transcript.WriteString(m.Text)
		}
	}
	result := <-results
	if !result.Success {
		if result.Error != nil {
			return nil, fmt.Errorf("plan request: %w", result.Error)
		}
		return nil, fmt.Errorf("plan request failed")
	}

	var plan []planTask
	if err := json.Unmarshal([]byte(extractJSONArray(transcript.String())), &plan); err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("plan response contained no tasks")
	}

	idFor := make(map[string]string, len(plan))
	for _, pt := range plan {
		idFor[pt.ID] = uuid.NewString()
	}

	tasks := make([]*models.Task, 0, len(plan))
	for _, pt := range plan {
		dependsOn := make([]string, 0, len(pt.DependsOn))
		for _, dep := range pt.DependsOn {
			if realID, ok := idFor[dep]; ok {
				dependsOn = append(dependsOn, realID)
			}
		}
		tasks = append(tasks, &models.Task{
			ID:          idFor[pt.ID],
			Type:        taskTypeFromString(pt.TaskType),
			Title:       pt.Title,
			Description: pt.Description,
			Priority:    priorityFromString(pt.Priority),
			DependsOn:   dependsOn,
		})
	}
	return tasks, nil
}

func taskTypeFromString(s string) models.TaskType {
	t := models.TaskType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return models.TaskTypeFeature
}

func priorityFromString(s string) models.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// extractJSONArray trims any leading/trailing prose around the first
// top-level JSON array in s, tolerating a model that ignores the
// "no prose" instruction.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
