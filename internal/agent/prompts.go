package agent

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/switchyard/pkg/models"
)

// ClassifierPrompt instructs the model to label the request.
const ClassifierPrompt = `You are an intent classification expert. Classify the user's input into exactly one of these intents:

1. "plain-chat": greetings, general knowledge, code questions, creative writing, anything answered in one reply.
2. "decompose": multi-step requests needing research, analysis, or several specialists.
3. "simple-generation": the user wants an image or visual created and the request is self-contained.
4. "complex-generation": the user wants an image or visual created that first needs research or analysis.
5. "domain-action": the user wants to change the state of an external system (devices, accounts, orders).

Priority rules:
- Mentions of drawing, rendering, or generating a picture win over everything else.
- File questions only count as "decompose" when the conversation contains a file.
- Everything else that is simple conversation is "plain-chat".

Respond with JSON only: {"intent": "<one of the labels above>"}`

// SynthesizerPrompt instructs the model to merge task outputs.
const SynthesizerPrompt = `You are a lead editor. Several specialists have contributed to answering the same user request.
Merge their contributions into one coherent, accurate, readable answer.
Remove redundancy. Keep a friendly tone. Do not add a preamble and do not mention the specialists.`

// ChatPrompt is the system prompt for direct conversation.
const ChatPrompt = `You are a friendly AI assistant. Reply to the user's input directly.`

// ApprovalPrompt is the system prompt for the call made after a human responds to an approval request.
const ApprovalPrompt = `You are an operator for external systems. A human has just responded to your approval request.
Carry out what they approved using the available tools, then report what was done. If they declined, say that nothing was changed.`

// WorkerPrompt builds the system instruction for one task: its role, its
// instruction, and the outputs of the tasks it depends on.
func WorkerPrompt(task models.Task, outputs models.AgentOutputs) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an excellent %s.\n", task.Role)
	fmt.Fprintf(&sb, "Your current task: %s\n", task.Instruction)
	sb.WriteString("If you find the task cannot be completed, explain why.\n")

	if len(task.Dependencies) > 0 {
		sb.WriteString("\n## Results from earlier tasks\n")
		for _, id := range task.Dependencies {
			out, ok := outputs[id]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "\n### [%s]\n%s\n", id, out)
		}
	}
	return sb.String()
}

// ClassifierInput renders the conversation for the classifier.
func ClassifierInput(msgs []models.Message) string {
	hasFile := "no"
	if models.HasFileAttachment(msgs) {
		hasFile = "yes"
	}
	return fmt.Sprintf("[Context]\n- Conversation contains a file: %s\n\n[User input]\n---\n%s\n---\n\nGive the classification directly.",
		hasFile, models.RenderMessages(msgs))
}

// SynthesizerInput renders the request and every output in task order.
// Outputs for IDs not in tasks follow in sorted order.
func SynthesizerInput(msgs []models.Message, tasks models.TaskGraph, outputs models.AgentOutputs) string {
	return fmt.Sprintf("Original user request:\n%s\n\nSpecialist contributions:\n%s",
		models.LastText(msgs), RenderOutputs(tasks, outputs))
}

// RenderOutputs lists outputs labeled by task ID.
func RenderOutputs(tasks models.TaskGraph, outputs models.AgentOutputs) string {
	seen := make(map[string]bool, len(outputs))
	var parts []string
	for _, t := range tasks {
		if out, ok := outputs[t.ID]; ok {
			parts = append(parts, fmt.Sprintf("### Contribution [%s]\n%s", t.ID, out))
			seen[t.ID] = true
		}
	}
	for _, id := range outputs.Keys() {
		if !seen[id] {
			parts = append(parts, fmt.Sprintf("### Contribution [%s]\n%s", id, outputs[id]))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// GenerationPrompt builds the prompt-writing instruction for generation
// intents. research is the synthesized result, when one exists.
func GenerationPrompt(research, aspect, request string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert at writing image generation prompts. Based on the user's request")
	if research != "" {
		fmt.Fprintf(&sb, " and the following research summary:\n%s\n", research)
	} else {
		sb.WriteString(",\n")
	}
	fmt.Fprintf(&sb, "write one vivid, detailed image description.\nThe image aspect ratio is %s.\nThe user's input is: %s", aspect, request)
	return sb.String()
}
