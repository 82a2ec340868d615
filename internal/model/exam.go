package model

// QuestionType enumerates the supported answer arities.
type QuestionType string

const (
	// QuestionTypeSingle expects exactly one selected option.
	QuestionTypeSingle QuestionType = "SINGLE"
	// QuestionTypeMulti expects exactly two selected options.
	QuestionTypeMulti QuestionType = "MULTI"
)

// Option is one selectable choice of a question.
type Option struct {
	ID     string `json:"id"`
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Question represents a single exam question. CorrectIDs is always a
// subset of the option ids; MULTI questions carry exactly two correct ids.
type Question struct {
	ID          string       `json:"id"`
	Number      int          `json:"number"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Options     []Option     `json:"options"`
	CorrectIDs  []string     `json:"correct_ids"`
	Explanation string       `json:"explanation,omitempty"`
}

// Exam is an immutable exam definition produced by the markdown parser.
type Exam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// QuestionByID returns the question with the given id, or nil.
func (e *Exam) QuestionByID(id string) *Question {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i]
		}
	}
	return nil
}

// LoadExamRequest is the payload for loading a markdown exam into the registry.
type LoadExamRequest struct {
	ID      string `json:"id" binding:"required,min=1,max=100"`
	Content string `json:"content" binding:"required,min=1"`
}
