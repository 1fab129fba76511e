// internal/application/search.go
package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"loan-origination/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const IndexName = "loan_applications"

var ErrIndexNotFound = errors.New("INDEX_NOT_FOUND")

// IndexMapping is applied when the index is first created.
const IndexMapping = `{
	"mappings": {
		"properties": {
			"id":              {"type": "keyword"},
			"userId":          {"type": "long"},
			"status":          {"type": "keyword"},
			"applicantName":   {"type": "text"},
			"email":           {"type": "keyword"},
			"loanType":        {"type": "keyword"},
			"requestedAmount": {"type": "double"},
			"loanPurpose":     {"type": "text"},
			"employerName":    {"type": "text"},
			"createdAt":       {"type": "date"}
		}
	}
}`

// Indexer keeps the search index in step with the relational store.
type Indexer interface {
	Index(ctx context.Context, app *models.LoanApplication) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
	IndexName() string
}

// SearchHit is the flattened, searchable view of an application.
type SearchHit struct {
	ID              string                   `json:"id"`
	UserID          int64                    `json:"userId"`
	Status          models.ApplicationStatus `json:"status"`
	ApplicantName   string                   `json:"applicantName,omitempty"`
	Email           string                   `json:"email,omitempty"`
	LoanType        models.LoanType          `json:"loanType,omitempty"`
	RequestedAmount float64                  `json:"requestedAmount,omitempty"`
	LoanPurpose     string                   `json:"loanPurpose,omitempty"`
	EmployerName    string                   `json:"employerName,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	Score           float64                  `json:"score,omitempty"`
}

func searchDocument(app *models.LoanApplication) SearchHit {
	doc := SearchHit{
		ID:        app.ID,
		UserID:    app.UserID,
		Status:    app.Status,
		CreatedAt: app.CreatedAt,
	}
	if p := app.Data.PersonalInfo; p != nil {
		doc.ApplicantName = strings.TrimSpace(p.FirstName + " " + p.LastName)
		doc.Email = p.Email
	}
	if l := app.Data.LoanDetails; l != nil {
		doc.LoanType = l.LoanType
		doc.RequestedAmount = l.RequestedAmount
		doc.LoanPurpose = l.LoanPurpose
	}
	if e := app.Data.EmploymentInfo; e != nil {
		doc.EmployerName = e.EmployerName
	}
	return doc
}

type ElasticIndexer struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticIndexer writes to index, or IndexName when index is empty.
func NewElasticIndexer(es *elasticsearch.Client, index string) *ElasticIndexer {
	if index == "" {
		index = IndexName
	}
	return &ElasticIndexer{es: es, index: index}
}

// IndexName returns the index in use.
func (i *ElasticIndexer) IndexName() string { return i.index }

func (i *ElasticIndexer) Index(ctx context.Context, app *models.LoanApplication) error {
	body, err := json.Marshal(searchDocument(app))
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: app.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("index application %s: %w", app.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index application %s: %s", app.ID, res.Status())
	}
	return nil
}

func (i *ElasticIndexer) Remove(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: i.index, DocumentID: id}.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("remove application %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("remove application %s: %s", id, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64   `json:"_score"`
			Source SearchHit `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (i *ElasticIndexer) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"applicantName^3", "email^2", "loanPurpose", "employerName", "id"},
				"fuzziness": "AUTO",
				"lenient":   true,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search applications: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, i.index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search applications: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hit := h.Source
		hit.Score = h.Score
		hits = append(hits, hit)
	}
	return hits, nil
}
