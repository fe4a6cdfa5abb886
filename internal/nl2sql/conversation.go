package nl2sql

import "strings"

type Turn struct {
	Question string
	Answer   string
}

// Conversation accumulates follow-up turns. Turns are only ever appended, so
// each String() output extends the previous one.
type Conversation struct {
	Turns []Turn
}

func (c *Conversation) Append(question, answer string) {
	c.Turns = append(c.Turns, Turn{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	})
}

func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Turns)
}

func (c *Conversation) String() string {
	if c == nil || len(c.Turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, turn := range c.Turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Q: ")
		b.WriteString(turn.Question)
		b.WriteString("\nA: ")
		b.WriteString(turn.Answer)
	}
	return b.String()
}
