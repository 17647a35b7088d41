package models

// DocumentType is the closed set of document kinds a paper can have.
type DocumentType string

const (
	DocumentArticle         DocumentType = "article"
	DocumentConferencePaper DocumentType = "conference paper"
	DocumentBookChapter     DocumentType = "book chapter"
	DocumentThesis          DocumentType = "thesis"
)

// DocumentTypes lists every accepted document type.
var DocumentTypes = []DocumentType{
	DocumentArticle,
	DocumentConferencePaper,
	DocumentBookChapter,
	DocumentThesis,
}

// PublicationType is the closed set of publication kinds a paper can have.
type PublicationType string

const (
	PublicationResearch PublicationType = "research"
	PublicationReview   PublicationType = "review"
	PublicationLectures PublicationType = "lectures"
)

// PublicationTypes lists every accepted publication type.
var PublicationTypes = []PublicationType{
	PublicationResearch,
	PublicationReview,
	PublicationLectures,
}

// Valid reports whether t belongs to the closed set.
func (t DocumentType) Valid() bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Valid reports whether t belongs to the closed set.
func (t PublicationType) Valid() bool {
	for _, v := range PublicationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Paper is the validated input of a single prediction.
type Paper struct {
	NumberOfPages   int             `json:"number_of_pages"`
	PreprintDate    string          `json:"preprint_date"`
	AuthorCount     int             `json:"author_count"`
	DocumentType    DocumentType    `json:"document_type"`
	PublicationType PublicationType `json:"publication_type"`
}

// Prediction is the response of the prediction endpoint.
type Prediction struct {
	NumberOfReferences float64 `json:"number_of_references"`
}

// PaperRecord is a historical paper as stored in the paper index and read
// from training files. Every field is optional; nil means missing.
type PaperRecord struct {
	ID              string   `json:"id"`
	NumberOfPages   *float64 `json:"number_of_pages,omitempty"`
	PreprintDate    string   `json:"preprint_date,omitempty"`
	AuthorCount     *float64 `json:"author_count,omitempty"`
	DocumentType    string   `json:"document_type,omitempty"`
	PublicationType string   `json:"publication_type,omitempty"`

	// NumberOfReferences is the training label.
	NumberOfReferences *float64 `json:"number_of_references,omitempty"`

	// Citation metadata is kept for the index but never used as a feature.
	CitationCount                     *float64 `json:"citation_count,omitempty"`
	CitationCountWithoutSelfCitations *float64 `json:"citation_count_without_self_citations,omitempty"`
	Refereed                          *bool    `json:"refereed,omitempty"`
}
