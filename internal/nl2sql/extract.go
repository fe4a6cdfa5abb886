package nl2sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	answerPattern    = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	reasoningPattern = regexp.MustCompile(`(?s)<reasoning>(.*?)</reasoning>`)
)

var ErrNoAnswer = errors.New("model response has no <answer> block")

// ExtractionError reports a model response that cannot be used. Response is
// the raw text the model returned.
type ExtractionError struct {
	Response string
}

func (e *ExtractionError) Error() string {
	return "extract sql: " + ErrNoAnswer.Error()
}

func (e *ExtractionError) Unwrap() error {
	return ErrNoAnswer
}

// Answer is a parsed model response. SQL is never empty; Reasoning may be.
type Answer struct {
	SQL       string
	Reasoning string
}

// ParseAnswer takes the first <answer> block as the SQL. The statement is not
// repaired or validated beyond being non-blank.
func ParseAnswer(text string) (Answer, error) {
	match := answerPattern.FindStringSubmatch(text)
	if match == nil {
		return Answer{}, &ExtractionError{Response: text}
	}
	sql := strings.TrimSpace(match[1])
	if sql == "" {
		return Answer{}, &ExtractionError{Response: text}
	}

	answer := Answer{SQL: sql}
	if reasoning := reasoningPattern.FindStringSubmatch(text); reasoning != nil {
		answer.Reasoning = strings.TrimSpace(reasoning[1])
	}
	return answer, nil
}

func ExtractSQL(text string) (string, error) {
	answer, err := ParseAnswer(text)
	if err != nil {
		return "", err
	}
	return answer.SQL, nil
}
