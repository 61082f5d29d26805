package domain

import (
	"encoding/json"
	"fmt"
)

const (
	AnnotationTypeSearchResults = "search_results"
	AnnotationTypeInfo          = "info"

	SearchResultsTitle = "Search Results"
)

// SearchResult es un resultado de busqueda normalizado.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"content"`
	IconURL string `json:"icon_url,omitempty"`
}

type SearchResultsAnnotation struct {
	Title   string         `json:"title"`
	Results []SearchResult `json:"results"`
}

type InfoAnnotation struct {
	ModelID          string `json:"model"`
	WaitingTimeMs    int64  `json:"waiting_time"`
	ReasoningEnabled bool   `json:"is_thinking"`
}

// Annotation es una union etiquetada por "type". Los tipos desconocidos se
// conservan tal cual para no perder datos al reescribir la sesion.
type Annotation struct {
	Type          string
	SearchResults *SearchResultsAnnotation
	Info          *InfoAnnotation

	raw json.RawMessage
}

func NewSearchResultsAnnotation(results []SearchResult) Annotation {
	if results == nil {
		results = []SearchResult{}
	}
	return Annotation{
		Type: AnnotationTypeSearchResults,
		SearchResults: &SearchResultsAnnotation{
			Title:   SearchResultsTitle,
			Results: results,
		},
	}
}

func NewInfoAnnotation(info InfoAnnotation) Annotation {
	return Annotation{Type: AnnotationTypeInfo, Info: &info}
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	switch {
	case a.Type == AnnotationTypeSearchResults && a.SearchResults != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*SearchResultsAnnotation
		}{a.Type, a.SearchResults})
	case a.Type == AnnotationTypeInfo && a.Info != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*InfoAnnotation
		}{a.Type, a.Info})
	case len(a.raw) > 0:
		return a.raw, nil
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{a.Type})
	}
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode annotation: %w", err)
	}

	*a = Annotation{Type: head.Type}
	switch head.Type {
	case AnnotationTypeSearchResults:
		var s SearchResultsAnnotation
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode search annotation: %w", err)
		}
		if s.Results == nil {
			s.Results = []SearchResult{}
		}
		a.SearchResults = &s
	case AnnotationTypeInfo:
		var info InfoAnnotation
		if err := json.Unmarshal(data, &info); err != nil {
			return fmt.Errorf("decode info annotation: %w", err)
		}
		a.Info = &info
	default:
		a.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}
