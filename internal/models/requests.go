package models

import "statutelink/pkg/validation"

// SearchRequest is the retrieval API input. The LLM-serving layer calls this
// internally; limits mirror the retrieval contract.
type SearchRequest struct {
	Query                     string `json:"query" validate:"required,min=1,max=1000"`
	TopK                      int    `json:"top_k" validate:"omitempty,min=1,max=50"`
	UseInterpretationLinks    *bool  `json:"use_interpretation_links" validate:"omitempty"`
	MaxInterpretivePerStatute int    `json:"max_interpretive_per_statute" validate:"omitempty,min=1,max=10"`
}

// UseLinks resolves the tri-state flag; boosting defaults to on.
func (r *SearchRequest) UseLinks() bool {
	return r.UseInterpretationLinks == nil || *r.UseInterpretationLinks
}

// ValidateRequest is the validation API input.
type ValidateRequest struct {
	Query   string                  `json:"query" validate:"required,min=10,max=2000"`
	Answer  string                  `json:"answer" validate:"required,min=50"`
	Context []ValidateContextDoc    `json:"context" validate:"required,min=1,max=20,dive"`
}

// ValidateContextDoc is one retrieved document accompanying the answer.
type ValidateContextDoc struct {
	DocID   string `json:"doc_id" validate:"required"`
	Content string `json:"content" validate:"required"`
	DocType string `json:"doc_type" validate:"omitempty,oneof=statute case rule"`
}

// ToContextDocs converts the wire shape into the validation package's.
func (r *ValidateRequest) ToContextDocs() []validation.ContextDoc {
	docs := make([]validation.ContextDoc, len(r.Context))
	for i, d := range r.Context {
		docs[i] = validation.ContextDoc{DocID: d.DocID, Content: d.Content}
		if d.DocType != "" {
			docs[i].DocType = docType(d.DocType)
		}
	}
	return docs
}
