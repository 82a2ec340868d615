// Package parser turns markdown exam files into Exam definitions. It is
// a pure transform with no storage access; the session manager never
// sees raw markdown.
//
// Expected shape:
//
//	# Exam Title
//
//	## Question 1
//	Question text, possibly multi-line.
//	- [ ] First option
//	- [x] Correct option
//	- [ ] Another option
//	**Explanation:** optional rationale.
//
// One checked option makes a SINGLE question, two make a MULTI question.
package parser

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/quizdrill/quizdrill-backend/internal/model"
)

const explanationMarker = "**Explanation:**"

// ParseExam parses markdown content into an Exam with the given id.
func ParseExam(content, id string) (*model.Exam, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("exam id is required")
	}

	exam := &model.Exam{ID: id}
	var cur *questionBuilder
	lineNo := 0

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "## "):
			if cur != nil {
				q, err := cur.build()
				if err != nil {
					return nil, err
				}
				exam.Questions = append(exam.Questions, q)
			}
			cur = newQuestionBuilder(trimmed[3:], len(exam.Questions)+1, lineNo)

		case strings.HasPrefix(trimmed, "# "):
			if exam.Title == "" {
				exam.Title = strings.TrimSpace(trimmed[2:])
			}

		case cur != nil:
			cur.feed(trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	if cur != nil {
		q, err := cur.build()
		if err != nil {
			return nil, err
		}
		exam.Questions = append(exam.Questions, q)
	}

	if exam.Title == "" {
		exam.Title = id
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("exam %q has no questions", id)
	}
	return exam, nil
}

type questionBuilder struct {
	heading       string
	number        int
	line          int
	textLines     []string
	options       []model.Option
	correct       []string
	inExplanation bool
	explanation   []string
}

func newQuestionBuilder(heading string, next, line int) *questionBuilder {
	b := &questionBuilder{heading: strings.TrimSpace(heading), number: next, line: line}
	// "Question 7" style headings keep their own numbering.
	fields := strings.Fields(b.heading)
	if len(fields) >= 2 {
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
			b.number = n
		}
	}
	return b
}

func (b *questionBuilder) feed(trimmed string) {
	switch {
	case strings.HasPrefix(trimmed, "- [ ] "), strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
		checked := trimmed[3] == 'x' || trimmed[3] == 'X'
		letter := string(rune('A' + len(b.options)))
		opt := model.Option{ID: letter, Letter: letter, Text: strings.TrimSpace(trimmed[6:])}
		b.options = append(b.options, opt)
		if checked {
			b.correct = append(b.correct, opt.ID)
		}
		b.inExplanation = false

	case strings.HasPrefix(trimmed, explanationMarker):
		b.inExplanation = true
		if rest := strings.TrimSpace(trimmed[len(explanationMarker):]); rest != "" {
			b.explanation = append(b.explanation, rest)
		}

	case b.inExplanation:
		if trimmed != "" {
			b.explanation = append(b.explanation, trimmed)
		}

	case len(b.options) == 0:
		if trimmed != "" {
			b.textLines = append(b.textLines, trimmed)
		}
	}
}

func (b *questionBuilder) build() (model.Question, error) {
	q := model.Question{
		ID:          fmt.Sprintf("q%d", b.number),
		Number:      b.number,
		Text:        strings.Join(b.textLines, "\n"),
		Options:     b.options,
		CorrectIDs:  b.correct,
		Explanation: strings.Join(b.explanation, "\n"),
	}
	if len(q.Options) < 2 {
		return q, fmt.Errorf("question %q (line %d): needs at least two options", b.heading, b.line)
	}
	switch len(b.correct) {
	case 1:
		q.Type = model.QuestionTypeSingle
	case 2:
		q.Type = model.QuestionTypeMulti
	default:
		return q, fmt.Errorf("question %q (line %d): %d checked options, want 1 or 2", b.heading, b.line, len(b.correct))
	}
	return q, nil
}
