package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentOutputs_MergeFirstWriteWins(t *testing.T) {
	base := AgentOutputs{"A": "first"}

	got := base.Merge(AgentOutputs{"A": "second", "B": "b"})

	assert.Equal(t, AgentOutputs{"A": "first", "B": "b"}, got)
	assert.Equal(t, AgentOutputs{"A": "first"}, base, "receiver must not be modified")
}

func TestAgentOutputs_MergeIdempotent(t *testing.T) {
	update := AgentOutputs{"A": "x"}

	once := AgentOutputs{}.Merge(update)
	twice := once.Merge(update)

	assert.Equal(t, once, twice)
}

func TestAgentOutputs_MergeNil(t *testing.T) {
	var nilOutputs AgentOutputs
	got := nilOutputs.Merge(AgentOutputs{"A": "x"})
	assert.Equal(t, "x", got["A"])
	assert.True(t, got.Has("A"))
	assert.False(t, got.Has("B"))
}

func TestAgentOutputs_Keys(t *testing.T) {
	o := AgentOutputs{"b": "", "a": "", "c": ""}
	assert.Equal(t, []string{"a", "b", "c"}, o.Keys())
}

func TestExecutionState_Apply(t *testing.T) {
	s := NewExecutionState("t1")
	require.Equal(t, PhaseClassify, s.Position)
	require.Equal(t, DefaultAspect, s.Config.Aspect)

	s = s.Apply(Update{Messages: []Message{NewTextMessage("hello")}})
	s = s.Apply(Update{Messages: []Message{NewTextMessage("again")}})
	assert.Len(t, s.Messages, 2, "messages concatenate")

	s = s.Apply(Update{Config: &Config{Aspect: Aspect1x1}})
	assert.Equal(t, Aspect1x1, s.Config.Aspect)
	s = s.Apply(Update{Config: &Config{}})
	assert.Equal(t, Aspect1x1, s.Config.Aspect, "empty config fields do not overwrite")

	s = s.Apply(Update{Result: Ptr("plan")})
	s = s.Apply(Update{})
	assert.Equal(t, "plan", s.Result, "nil result keeps the previous value")

	s = s.Apply(Update{Intent: Ptr(IntentDecompose), Position: Ptr(PhasePlan)})
	assert.Equal(t, IntentDecompose, s.Intent)
	assert.Equal(t, PhasePlan, s.Position)

	tasks := TaskGraph{{ID: "A"}}
	s = s.Apply(Update{Tasks: &tasks})
	tasks[0].ID = "mutated"
	assert.Equal(t, "A", s.Tasks[0].ID, "tasks are copied on apply")
}

func TestExecutionState_ApplyOrderIndependentForDistinctKeys(t *testing.T) {
	a := Update{Outputs: AgentOutputs{"A": "x"}}
	b := Update{Outputs: AgentOutputs{"B": "y"}}

	s1 := NewExecutionState("t").Apply(a).Apply(b)
	s2 := NewExecutionState("t").Apply(b).Apply(a)

	assert.Equal(t, s1.Outputs, s2.Outputs)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, s1.Completed())
}

func TestExecutionState_ApplyDoesNotAliasMessages(t *testing.T) {
	base := NewExecutionState("t").Apply(Update{Messages: []Message{NewTextMessage("one")}})
	left := base.Apply(Update{Messages: []Message{NewTextMessage("left")}})
	right := base.Apply(Update{Messages: []Message{NewTextMessage("right")}})

	assert.Equal(t, "left", left.Messages[1].Text())
	assert.Equal(t, "right", right.Messages[1].Text())
	assert.Len(t, base.Messages, 1)
}
