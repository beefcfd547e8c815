package strategy

import "fmt"

// RephrasePrompt turns an exam vignette into the kind of question a patient
// would post online.
const RephrasePrompt = `Rewrite the following exam question as a first-person question that an ordinary member of the public might post on an online health forum such as Reddit.

Keep the symptoms, their timing and anything the person could notice or know about themselves. Leave out everything they could only know after seeing a doctor: examination findings, vital signs, laboratory values, imaging and test results. Do not mention the answer options or name a diagnosis.

Reply with the rewritten question only.`

// AnswerPrompt is the system prompt for every final answer.
const AnswerPrompt = "Address the inquiry provided by the user."

// SurveyQuestionsPrompt makes the model act as an intake clinician that asks
// follow-up questions before answering.
const SurveyQuestionsPrompt = `You are preparing a short intake survey for a person who asked a health question. List the additional information a doctor would want before suggesting a diagnosis.

Cover, where relevant and not already answered in the question:
- Basic details: age, sex, weight, ethnicity.
- Past health problems and current medication.
- Lifestyle: smoking, alcohol, exercise.
- If a doctor visit is mentioned, any examination or test results they were told about (blood pressure, temperature, pulse, blood tests).
- Questions tailored to the specific symptoms described.

Write one short question per line, each ending with a colon so it can be filled in. Do not repeat information the person already gave. Do not add any commentary, heading text other than "Additional Information:", or formatting.`

// SurveyAnswersPrompt asks the model to fill in the survey the way a patient
// with the given condition would, in everyday language.
func SurveyAnswersPrompt(condition string) string {
	return fmt.Sprintf(`You are role-playing a patient who has %s but does not know it.

Fill in the "Additional Information" survey the user sends you by answering each line with symptoms and details typical of that condition. Use a casual, everyday tone. Do not include anything a patient could only know from medical tests or from a doctor, and never name the condition.

Return the survey with every original question kept and your answer written after its colon.`, condition)
}

// StructuredPrompt asks for a diagnostic assessment as JSON matching
// assessmentSchema.
const StructuredPrompt = `You are a careful diagnostician. Work through the user's description step by step: list the key findings, consider the likely causes, then commit to the single most likely diagnosis.

Respond with a JSON object only, no prose and no code fences, using exactly these keys:
{
  "key_findings": ["..."],
  "differential": ["..."],
  "most_likely_diagnosis": "...",
  "red_flags": ["..."],
  "next_steps": ["..."]
}`
