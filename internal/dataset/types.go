package dataset

// Supported corpus file formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// Dataset is a loaded benchmark corpus together with its configuration.
type Dataset struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Version       string `yaml:"version"`
	Source        string `yaml:"source"` // upstream location, informational only
	File          string `yaml:"file"`
	Format        string `yaml:"format"` // "jsonl" (default) or "csv"
	QuestionField string `yaml:"question_field"`
	AnswerField   string `yaml:"answer_field"`
	Pairs         []Pair `yaml:"-"` // loaded separately from File
}

// Pair is one (question, answer) item of a corpus. Index is its position in
// the corpus and never changes for the lifetime of a run.
type Pair struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FileOptions describes how to read a corpus file.
type FileOptions struct {
	Format        string
	QuestionField string
	AnswerField   string
}

func (o FileOptions) withDefaults(filename string) FileOptions {
	if o.Format == "" {
		o.Format = formatFromName(filename)
	}
	if o.QuestionField == "" {
		o.QuestionField = "question"
	}
	if o.AnswerField == "" {
		o.AnswerField = "answer"
	}
	return o
}
