package model

// Preferences is the flat validated user settings record. Unknown keys in
// older saved data are dropped on load; missing keys fall back to defaults
// so records written by newer versions stay loadable.
type Preferences struct {
	Theme          string   `json:"theme" validate:"required,oneof=light dark system"`
	ShowTimer      bool     `json:"show_timer"`
	AutoSave       bool     `json:"auto_save"`
	SoundEnabled   bool     `json:"sound_enabled"`
	QuestionOrder  string   `json:"question_order" validate:"required,oneof=ordered shuffled"`
	DefaultMode    QuizMode `json:"default_mode" validate:"required,oneof=PRACTICE EXAM"`
	MaxHistorySize int      `json:"max_history_size" validate:"min=1,max=200"`
}

// DefaultPreferences returns the baseline settings merged under any
// persisted record on load.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:          "system",
		ShowTimer:      true,
		AutoSave:       true,
		SoundEnabled:   false,
		QuestionOrder:  "ordered",
		DefaultMode:    QuizModePractice,
		MaxHistorySize: 50,
	}
}
