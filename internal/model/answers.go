package model

import (
	"encoding/json"
	"sort"
)

// AnswerMap maps question id to the ordered selected option ids.
// An absent key means the question is unanswered. Iteration order of the
// in-memory map is irrelevant; the wire format is an explicit array of
// pairs sorted by question id so persisted records are stable.
type AnswerMap map[string][]string

type answerPair struct {
	QuestionID string   `json:"question_id"`
	Selected   []string `json:"selected"`
}

// MarshalJSON serializes the map as an array of question/selection pairs.
func (m AnswerMap) MarshalJSON() ([]byte, error) {
	pairs := make([]answerPair, 0, len(m))
	for qid, sel := range m {
		pairs = append(pairs, answerPair{QuestionID: qid, Selected: sel})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].QuestionID < pairs[j].QuestionID })
	return json.Marshal(pairs)
}

// UnmarshalJSON restores the map from the pair-array wire format.
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	var pairs []answerPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(AnswerMap, len(pairs))
	for _, p := range pairs {
		out[p.QuestionID] = p.Selected
	}
	*m = out
	return nil
}

// Clone returns a deep copy of the answer map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for qid, sel := range m {
		cp := make([]string, len(sel))
		copy(cp, sel)
		out[qid] = cp
	}
	return out
}

// FlagSet is the set of question ids flagged for review. No order is
// implied; the wire format is a sorted array of ids.
type FlagSet map[string]bool

// MarshalJSON serializes the set as a sorted array of question ids.
func (f FlagSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(f))
	for qid, on := range f {
		if on {
			ids = append(ids, qid)
		}
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

// UnmarshalJSON restores the set from the array wire format.
func (f *FlagSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	out := make(FlagSet, len(ids))
	for _, qid := range ids {
		out[qid] = true
	}
	*f = out
	return nil
}

// Clone returns a copy of the flag set.
func (f FlagSet) Clone() FlagSet {
	out := make(FlagSet, len(f))
	for qid, on := range f {
		out[qid] = on
	}
	return out
}
