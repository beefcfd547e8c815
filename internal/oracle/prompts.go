package oracle

// DiseaseEntityPrompt asks the model whether a benchmark answer names one
// diagnosable condition. Items whose answer is a drug, a test or a management
// step cannot be turned into a "what do I have?" question and are skipped.
const DiseaseEntityPrompt = `You classify answers from a medical exam question bank.

Decide whether the given answer names exactly one diagnosable disease entity: a disease, syndrome, disorder, infection, injury or tumour that a clinician could diagnose in a patient.

Answer "no" if the answer is a drug, dose, laboratory value, diagnostic test, procedure, management step, anatomical structure, organism on its own, mechanism, or a list of several conditions.

Respond with a single word: yes or no. Do not explain.`
