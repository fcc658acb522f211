package gemini

import "google.golang.org/genai"

// TaskExtractionSystemInstruction tells the model how to turn a chat command
// into task fields. The user prompt supplies the reference time and mentions.
const TaskExtractionSystemInstruction = `You are a task parsing assistant for a Telegram group bot. Administrators describe a task in natural language and you extract structured fields from it.

## FIELDS
1. task_name: a short, clear name for the task. Do not include assignees or the deadline in it.
2. assignees: usernames of the people the task is assigned to, without the @ symbol. Only use people from the "Mentioned users" list. If a user has no username, use the display name exactly as listed.
3. deadline: an absolute ISO-8601 timestamp in UTC, for example 2025-10-20T14:30:00Z. Resolve relative expressions such as "tomorrow", "next monday" or "in 3 days" against the reference time.
4. confidence: your confidence from 0.0 to 1.0 that every field is correct.

## RULES
- If no time is given, use 09:00 UTC.
- If no date is given, use tomorrow.
- If the description is ambiguous or a field is guessed, lower the confidence.
- Never invent assignees that are not in the list.
- Return JSON only.`

// taskExtractionPrompt is formatted with the reference time, the mention
// list and the raw task description.
const taskExtractionPrompt = `Reference time (UTC): %s

Mentioned users:
%s

Task description: %q`

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"task_name":  {Type: genai.TypeString, Description: "Short name of the task."},
		"assignees":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "Usernames (without @) or display names of the assignees."},
		"deadline":   {Type: genai.TypeString, Description: "Absolute deadline as an ISO-8601 UTC timestamp."},
		"confidence": {Type: genai.TypeNumber, Description: "Confidence in the extraction between 0.0 and 1.0."},
	},
	Required: []string{"task_name", "assignees", "deadline", "confidence"},
}
