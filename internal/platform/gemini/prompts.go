package gemini

// The prompt templates share a response contract: the model must answer
// with a single JSON object matching planSchema, no surrounding prose.
const responseContract = `Respond with a single JSON object and nothing else, using this shape:
{"name": "...", "days": [{"day_index": 1, "focus": "...", "exercises": [{"name": "...", "sets": 3, "reps": "8-12", "style": "..."}]}]}`

const weeklyPlanPrompt = `You are an expert strength and conditioning coach.
Create a one-week workout plan tailored to the following client profile:

{{.Profile}}

The plan must contain between 3 and 7 training days, each with a clear focus
and 4 to 8 exercises. ` + responseContract

const weeklyRegenerationPrompt = `You are an expert strength and conditioning coach.
A client was unhappy with their current workout plan and asked for a new one.

Client feedback:
{{.Feedback}}
{{if .PreviousPlan}}
Their previous plan, for reference:
{{.PreviousPlan}}
{{end}}
Create a replacement one-week plan that directly addresses the feedback.
The plan must contain between 3 and 7 training days, each with a clear focus
and 4 to 8 exercises. ` + responseContract

const dayRegenerationPrompt = `You are an expert strength and conditioning coach.
A client asked to rework a single day of their workout plan.

Day being reworked: {{.DayFocus}}
Current exercises: {{.DayExercises}}
Reason for the change: {{.Reason}}
{{if .Styles}}Preferred training styles: {{.Styles}}
{{end}}
Produce a plan containing exactly that one reworked day, keeping the same
day_index, with 4 to 8 exercises honoring the reason and preferred styles. ` + responseContract
