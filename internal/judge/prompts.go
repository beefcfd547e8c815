package judge

import "fmt"

// EvaluationPrompt is the system prompt used for LLM-as-judge grading.
const EvaluationPrompt = `You are a medical examiner grading answers to diagnostic questions.

The user sends the ground truth answer and a response written for a patient. Decide whether the response identifies the ground truth diagnosis, either as its single conclusion or as its clearly preferred one. Synonyms and more specific forms of the same condition count. A response that only lists the ground truth among several equal possibilities, or that does not commit to a diagnosis, does not.

Reply with exactly one word: "accurate" or "inaccurate".`

func evaluationInput(groundTruth, response string) string {
	return fmt.Sprintf("Ground truth answer: %s. Response: %s", groundTruth, response)
}
