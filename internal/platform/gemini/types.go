package gemini

// planSchema defines the JSON structure the model is instructed to return
// for every plan-producing prompt.
type planSchema struct {
	Name string      `json:"name"`
	Days []daySchema `json:"days"`
}

// daySchema is one day within the model's response.
type daySchema struct {
	DayIndex  int              `json:"day_index"`
	Focus     string           `json:"focus"`
	Exercises []exerciseSchema `json:"exercises"`
}

// exerciseSchema is one exercise within a day.
type exerciseSchema struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Style string `json:"style,omitempty"`
}

// promptData carries the fields available to the prompt templates.
type promptData struct {
	Profile      string
	Feedback     string
	PreviousPlan string
	DayFocus     string
	DayExercises string
	Reason       string
	Styles       string
}
