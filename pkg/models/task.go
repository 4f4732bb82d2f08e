package models

// TaskID identifies a memorized item
type TaskID string

// MainComponentID is the key of the single component of QA and plain tasks
const MainComponentID = "main"

// TaskSpecType describes what kind of practice a task asks for
type TaskSpecType string

const (
	TaskSpecTypeMemory TaskSpecType = "memory"
)

// TaskContentType describes how a task's prompt is laid out
type TaskContentType string

const (
	TaskContentTypeQA    TaskContentType = "qa"
	TaskContentTypePlain TaskContentType = "plain"
	TaskContentTypeCloze TaskContentType = "cloze"
)

// AttachmentID references a stored attachment. Attachment bytes live outside this module.
type AttachmentID string

// Task represents a memorized unit with one or more independently scheduled components
type Task struct {
	ID              TaskID                    `json:"id"`
	Spec            TaskSpec                  `json:"spec"`
	Provenance      *Provenance               `json:"provenance,omitempty"`
	ComponentStates map[string]ComponentState `json:"componentStates"`
	IsDeleted       bool                      `json:"isDeleted"`
	Metadata        map[string]string         `json:"metadata,omitempty"`
}

// TaskSpec is the content specification of a task
type TaskSpec struct {
	Type    TaskSpecType `json:"type"`
	Content TaskContent  `json:"content"`
}

// TaskContent holds the prompt. Answer is set for QA content, Components for cloze content.
type TaskContent struct {
	Type       TaskContentType           `json:"type"`
	Body       TaskContentField          `json:"body"`
	Answer     *TaskContentField         `json:"answer,omitempty"`
	Components map[string]ClozeComponent `json:"components,omitempty"`
}

// TaskContentField is a block of text with optional attachments
type TaskContentField struct {
	Text        string         `json:"text"`
	Attachments []AttachmentID `json:"attachments"`
}

// ClozeComponent is one deletion of a cloze task
type ClozeComponent struct {
	Order  int          `json:"order"`
	Ranges []ClozeRange `json:"ranges"`
}

// ClozeRange marks the hidden span of a cloze deletion, in characters (runes) of the body text
type ClozeRange struct {
	StartIndex int    `json:"startIndex"`
	Length     int    `json:"length"`
	Hint       string `json:"hint,omitempty"`
}

// Provenance links a task to the material it was derived from
type Provenance struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
}

// ComponentIDs returns the component keys a spec implies
func (s TaskSpec) ComponentIDs() []string {
	if s.Content.Type == TaskContentTypeCloze && len(s.Content.Components) > 0 {
		ids := make([]string, 0, len(s.Content.Components))
		for id := range s.Content.Components {
			ids = append(ids, id)
		}
		return ids
	}
	return []string{MainComponentID}
}

// ProvenanceIdentifier returns the source identifier, or "" for sourceless tasks
func (t *Task) ProvenanceIdentifier() string {
	if t.Provenance == nil {
		return ""
	}
	return t.Provenance.Identifier
}
