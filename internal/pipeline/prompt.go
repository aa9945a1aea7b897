package pipeline

import (
	"fmt"
	"strings"

	"github.com/young1lin/flux/internal/answer"
	"github.com/young1lin/flux/internal/models"
)

const (
	answerInstruction = "Answer the following question using only the sources provided.\n" +
		"Be concise. Cite sources by number [1], [2], etc."

	conversationInstruction = "Reply to the user naturally. Use the sources below only when the user's question actually needs them. " +
		"For greetings, small talk, or simple questions that don't need web results, respond briefly and naturally. " +
		"Do not summarize or cite the sources in that case.\n\n" +
		"When you do use the sources, cite them by number [1], [2], etc. Be concise.\n" +
		"You have context from previous turns in this conversation."
)

// buildAnswerPrompt is the one-shot prompt used by Answer
func buildAnswerPrompt(query string, sources []models.RankedResult) answer.Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	writeSources(&sb, sources)
	return answer.Prompt{System: answerInstruction, User: strings.TrimSpace(sb.String())}
}

// buildConversationPrompt includes the answered turns of the conversation.
// Errored turns are left out since they carry no answer.
func buildConversationPrompt(query string, history []models.ConversationTurn, sources []models.RankedResult) answer.Prompt {
	var sb strings.Builder
	wroteHeader := false
	for _, t := range history {
		if !t.Answered() {
			continue
		}
		if !wroteHeader {
			sb.WriteString("Previous conversation:\n")
			wroteHeader = true
		}
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", t.Query, t.Answer)
	}
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	writeSources(&sb, sources)
	return answer.Prompt{System: conversationInstruction, User: strings.TrimSpace(sb.String())}
}

func writeSources(sb *strings.Builder, sources []models.RankedResult) {
	sb.WriteString("Sources:\n")
	for i, r := range sources {
		fmt.Fprintf(sb, "[%d] %s\n%s\n\n", i+1, r.Candidate.Title, models.Snippet(r.Candidate.Content))
	}
}
