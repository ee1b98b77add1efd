package main

import (
	"context"
	"testing"

	"github.com/kugutsu/pipeline/internal/agent"
	"github.com/kugutsu/pipeline/internal/agent/agenttest"
	"github.com/kugutsu/pipeline/pkg/models"
)

func TestPlanTasks_TranslatesLocalIDsToUUIDs(t *testing.T) {
	response := `[
		{"id": "t1", "title": "add endpoint", "description": "add the endpoint", "task_type": "feature", "priority": "high", "depends_on": []},
		{"id": "t2", "title": "add tests", "description": "cover the endpoint", "task_type": "test", "priority": "medium", "depends_on": ["t1"]}
	]`
	fake := &agenttest.Fake{Responses: []agenttest.Response{
		{
			Messages: []agent.Message{{Kind: agent.MessageAssistantText, Text: response}},
			Result:   agent.Result{Success: true},
		},
	}}

	tasks, err := planTasks(context.Background(), fake, "add an endpoint with tests")
	if err != nil {
		t.Fatalf("planTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].ID == "t1" || tasks[1].ID == "t2" {
		t.Fatalf("planTasks did not translate local IDs to UUIDs: %+v", tasks)
	}
	if len(tasks[1].DependsOn) != 1 || tasks[1].DependsOn[0] != tasks[0].ID {
		t.Fatalf("tasks[1].DependsOn = %v, want [%s]", tasks[1].DependsOn, tasks[0].ID)
	}
	if tasks[0].Priority != models.PriorityHigh {
		t.Errorf("tasks[0].Priority = %v, want PriorityHigh", tasks[0].Priority)
	}
	if tasks[1].Type != models.TaskTypeTest {
		t.Errorf("tasks[1].Type = %v, want TaskTypeTest", tasks[1].Type)
	}
}

func TestPlanTasks_RejectsFailedExecution(t *testing.T) {
	fake := &agenttest.Fake{Responses: []agenttest.Response{
		{Result: agent.Result{Success: false}},
	}}

	if _, err := planTasks(context.Background(), fake, "anything"); err == nil {
		t.Fatal("expected an error when the Agent Executor invocation fails")
	}
}

func TestExtractJSONArray_TrimsSurroundingProse(t *testing.T) {
	in := "Here is the plan:\n[{\"id\":\"t1\"}]\nLet me know if you need changes."
	want := `[{"id":"t1"}]`
	if got := extractJSONArray(in); got != want {
		t.Errorf("extractJSONArray(%q) = %q, want %q", in, got, want)
	}
}

func TestTaskTypeFromString_DefaultsToFeature(t *testing.T) {
	if got := taskTypeFromString("not-a-real-type"); got != models.TaskTypeFeature {
		t.Errorf("taskTypeFromString(invalid) = %v, want TaskTypeFeature", got)
	}
}

func TestPriorityFromString(t *testing.T) {
	cases := map[string]models.Priority{"high": models.PriorityHigh, "low": models.PriorityLow, "medium": models.PriorityMedium, "": models.PriorityMedium}
	for in, want := range cases {
		if got := priorityFromString(in); got != want {
			t.Errorf("priorityFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
