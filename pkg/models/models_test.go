package models

import (
	"testing"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in     string
		want   Intent
		wantOK bool
	}{
		{"plain-chat", IntentPlainChat, true},
		{"decompose", IntentDecompose, true},
		{"simple-generation", IntentSimpleGeneration, true},
		{"complex-generation", IntentComplexGeneration, true},
		{"domain-action", IntentDomainAction, true},
		{"", IntentPlainChat, false},
		{"image", IntentPlainChat, false},
		{"DECOMPOSE", IntentPlainChat, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseIntent(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseIntent(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIntent_IsGeneration(t *testing.T) {
	for _, i := range Intents {
		want := i == IntentSimpleGeneration || i == IntentComplexGeneration
		if got := i.IsGeneration(); got != want {
			t.Errorf("%q.IsGeneration() = %v, want %v", i, got, want)
		}
	}
}

func TestModelHint_OrDefault(t *testing.T) {
	tests := []struct {
		hint ModelHint
		want ModelHint
	}{
		{ModelHintDefault, ModelHintDefault},
		{ModelHintReasoning, ModelHintReasoning},
		{"", ModelHintDefault},
		{"google", ModelHintDefault},
	}
	for _, tt := range tests {
		if got := tt.hint.OrDefault(); got != tt.want {
			t.Errorf("ModelHint(%q).OrDefault() = %q, want %q", tt.hint, got, tt.want)
		}
	}
}

func TestTask_Ready(t *testing.T) {
	task := Task{ID: "B", Dependencies: []string{"A"}}

	if task.Ready(AgentOutputs{}) {
		t.Error("task with unmet dependency should not be ready")
	}
	if !task.Ready(AgentOutputs{"A": "x"}) {
		t.Error("task with met dependency should be ready")
	}
	if !(Task{ID: "root"}).Ready(nil) {
		t.Error("task without dependencies should always be ready")
	}
}

func TestTaskGraph_CloneIsDeep(t *testing.T) {
	g := TaskGraph{{ID: "B", Dependencies: []string{"A"}}}
	c := g.Clone()
	c[0].Dependencies[0] = "Z"

	if g[0].Dependencies[0] != "A" {
		t.Errorf("Clone shares dependency slice: got %q", g[0].Dependencies[0])
	}
	if _, ok := g.Get("B"); !ok {
		t.Error("Get(B) should find the task")
	}
	if ids := g.IDs(); len(ids) != 1 || ids[0] != "B" {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestMessage_Render(t *testing.T) {
	msg := Message{Content: []ContentItem{
		Text("summarise this"),
		Attachment("f1", MimeFile),
		Attachment("i1", MimeImage),
		Text(""),
	}}

	if got, want := msg.Render(), "summarise this\n[file]\n[image]"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	if got := msg.Text(); got != "summarise this" {
		t.Errorf("Text() = %q", got)
	}
	if !HasFileAttachment([]Message{msg}) {
		t.Error("HasFileAttachment should be true")
	}
	if HasFileAttachment([]Message{{Content: []ContentItem{Attachment("i", MimeImage)}}}) {
		t.Error("image attachments are not files")
	}
}

func TestLastText(t *testing.T) {
	msgs := []Message{NewTextMessage("first"), {Content: []ContentItem{Attachment("f", MimeFile)}}}
	if got := LastText(msgs); got != "first" {
		t.Errorf("LastText() = %q, want %q", got, "first")
	}
}

func TestConfig_Merge(t *testing.T) {
	c := DefaultConfig().Merge(Config{Aspect: Aspect9x16})
	if c.Aspect != Aspect9x16 {
		t.Errorf("Aspect = %q, want %q", c.Aspect, Aspect9x16)
	}
	if !ValidAspect(Aspect21x9) || ValidAspect("2:1") {
		t.Error("ValidAspect mismatch")
	}
}
