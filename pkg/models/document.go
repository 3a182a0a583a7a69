package models

import (
	"fmt"
	"time"
)

// DocType identifies the kind of legal source a document node belongs to.
type DocType string

const (
	DocTypeStatute DocType = "statute"
	DocTypeCase    DocType = "case"
	DocTypeRule    DocType = "rule"
)

// ValidDocType reports whether t is one of the recognised document types.
func ValidDocType(t DocType) bool {
	switch t {
	case DocTypeStatute, DocTypeCase, DocTypeRule:
		return true
	}
	return false
}

// Document is one node of the hierarchical corpus tree. Roots sit at level 0;
// children reference their parent by id, never by pointer.
type Document struct {
	ID       string  `json:"id"`
	DocType  DocType `json:"doc_type"`
	Level    int     `json:"level"`
	ParentID string  `json:"parent_id,omitempty"`
	Title    string  `json:"title"`
	FullText string  `json:"full_text"`
	Hash     string  `json:"hash"`

	// Statute/rule fields
	ActName       string `json:"act_name,omitempty"`
	SectionNumber string `json:"section_number,omitempty"`
	Subsection    string `json:"subsection,omitempty"`

	// Case fields
	Citation string `json:"citation,omitempty"`
	Court    string `json:"court,omitempty"`
	Year     int    `json:"year,omitempty"`
	Parties  string `json:"parties,omitempty"`
	ParaNo   int    `json:"para_no,omitempty"`

	Jurisdiction string    `json:"jurisdiction,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// IsRoot reports whether the document is the root of its source tree.
func (d *Document) IsRoot() bool { return d.Level == 0 }

// Validate checks the structural invariants a single node can assert on its
// own: type, level range, parent presence, and the type-specific required
// fields at level 1.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if !ValidDocType(d.DocType) {
		return fmt.Errorf("document %s: unknown doc_type %q", d.ID, d.DocType)
	}
	if d.Level < 0 || d.Level > 3 {
		return fmt.Errorf("document %s: level %d out of range [0,3]", d.ID, d.Level)
	}
	if d.Level == 0 && d.ParentID != "" {
		return fmt.Errorf("document %s: root must not have a parent", d.ID)
	}
	if d.Level > 0 && d.ParentID == "" {
		return fmt.Errorf("document %s: level %d requires parent_id", d.ID, d.Level)
	}
	if d.Hash == "" {
		return fmt.Errorf("document %s: content hash is required", d.ID)
	}
	if d.DocType == DocTypeStatute && d.Level == 1 && d.SectionNumber == "" {
		return fmt.Errorf("document %s: statute section requires section_number", d.ID)
	}
	if d.DocType == DocTypeCase && d.Level == 1 && d.ParaNo == 0 {
		return fmt.Errorf("document %s: case paragraph requires para_no", d.ID)
	}
	return nil
}

// IndexUnit is the retrieval projection of a Document. Ingestion writes it to
// both the lexical and dense stores; query-time code only ever reads units.
type IndexUnit struct {
	UnitID   string  `json:"unit_id"`
	DocType  DocType `json:"doc_type"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Citation string  `json:"citation,omitempty"`
	Court    string  `json:"court,omitempty"`
	Year     int     `json:"year,omitempty"`
	ParaNo   int     `json:"para_no,omitempty"`
}

// UnitFromDocument projects a document into its index unit.
func UnitFromDocument(d *Document) IndexUnit {
	return IndexUnit{
		UnitID:   d.ID,
		DocType:  d.DocType,
		Title:    d.Title,
		Text:     d.FullText,
		Citation: d.Citation,
		Court:    d.Court,
		Year:     d.Year,
		ParaNo:   d.ParaNo,
	}
}
