package classification

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// termDocument is the indexed form of a SpecialTerm.
type termDocument struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Sign        string `json:"sign"`
	TaxID       string `json:"tax_id"`
	UserID      string `json:"user_id"`
	DebitCode   int    `json:"debit_code"`
	CreditCode  int    `json:"credit_code"`
}

// TermSearchResult is one full-text hit over the rule store.
type TermSearchResult struct {
	Description string  `json:"description"`
	Sign        string  `json:"sign"`
	DebitCode   int     `json:"debitCode"`
	CreditCode  int     `json:"creditCode"`
	Score       float64 `json:"score"`
}

// TermSearchIndex provides full-text search over classification rules
// so operators reviewing pending groups can find how similar
// descriptions were classified before.
type TermSearchIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewTermSearchIndex opens or creates the index. An empty path keeps it
// in memory.
func NewTermSearchIndex(path string) (*TermSearchIndex, error) {
	var index bleve.Index
	var err error

	m := termIndexMapping()
	if path == "" {
		index, err = bleve.NewMemOnly(m)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, m)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &TermSearchIndex{index: index}, nil
}

func termIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textField)
	docMapping.AddFieldMappingsAt("sign", keywordField)
	docMapping.AddFieldMappingsAt("tax_id", keywordField)
	docMapping.AddFieldMappingsAt("user_id", keywordField)
	docMapping.AddFieldMappingsAt("debit_code", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("credit_code", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexTerms (re)indexes rules in one batch.
func (si *TermSearchIndex) IndexTerms(terms []SpecialTerm) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	batch := si.index.NewBatch()
	for _, term := range terms {
		doc := termDocument{
			ID:          term.ID.String(),
			Description: term.Description,
			Sign:        term.Sign,
			TaxID:       term.TaxID,
			UserID:      term.UserID,
			DebitCode:   term.DebitCode,
			CreditCode:  term.CreditCode,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index term %s: %w", doc.ID, err)
		}
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search runs a fuzzy full-text query over the user's rule
// descriptions. Other users' terms are never returned.
func (si *TermSearchIndex) Search(userID, query string, limit int) ([]TermSearchResult, error) {
	si.mu.RLock()
	defer si.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1) // typo tolerance

	ownerQuery := bleve.NewTermQuery(userID)
	ownerQuery.SetField("user_id")

	request := bleve.NewSearchRequest(bleve.NewConjunctionQuery(ownerQuery, matchQuery))
	request.Size = limit
	request.Fields = []string{"*"}

	hits, err := si.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]TermSearchResult, 0, len(hits.Hits))
	for _, hit := range hits.Hits {
		result := TermSearchResult{Score: hit.Score}
		if desc, ok := hit.Fields["description"].(string); ok {
			result.Description = desc
		}
		if sign, ok := hit.Fields["sign"].(string); ok {
			result.Sign = sign
		}
		if debit, ok := hit.Fields["debit_code"].(float64); ok {
			result.DebitCode = int(debit)
		}
		if credit, ok := hit.Fields["credit_code"].(float64); ok {
			result.CreditCode = int(credit)
		}
		results = append(results, result)
	}
	return results, nil
}

// Close closes the underlying index.
func (si *TermSearchIndex) Close() error {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.index.Close()
}
