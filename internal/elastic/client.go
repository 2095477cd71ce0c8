package elastic

import (
	"fmt"
	"io"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/buger/jsonparser"
)

// Logical document collections inside the one physical index. Each
// document carries a doc_type keyword naming its collection; every
// facade operation scopes itself with it.
const (
	BlockStates       = "block_states"
	Blocks            = "blocks"
	Transactions      = "transactions"
	TransactionTraces = "transaction_traces"
	ActionTraces      = "action_traces"
	Accounts          = "accounts"
	PubKeys           = "pub_keys"
	AccountControls   = "account_controls"
)

type Client struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(urls []string, index string) (*Client, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no elasticsearch endpoints configured")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: urls,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: index}, nil
}

func (c *Client) IndexName() string { return c.index }

// do folds an esapi call into the facade's error classes and hands
// back the raw response body.
func (c *Client) do(res *esapi.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	defer res.Body.Close()

	body, rerr := io.ReadAll(res.Body)
	if rerr != nil {
		return nil, &ConnectionError{Err: rerr}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return body, &ResponseCodeError{Status: res.StatusCode, Body: string(body)}
	}
	return body, nil
}

// InitIndex ensures the physical index exists with the given mapping
// schema. Idempotent: an already existing index is left untouched.
func (c *Client) InitIndex(mappings string) error {
	res, err := c.es.Indices.Exists([]string{c.index})
	if err != nil {
		return &ConnectionError{Err: err}
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	_, err = c.do(c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(mappings)),
	))
	return err
}

func (c *Client) DeleteIndex() error {
	_, err := c.do(c.es.Indices.Delete(
		[]string{c.index},
		c.es.Indices.Delete.WithIgnoreUnavailable(true),
	))
	return err
}

// Index inserts or replaces one document in a collection. An empty id
// lets the backend generate one.
func (c *Client) Index(collection string, doc string, id string) error {
	tagged, err := withDocType(collection, doc)
	if err != nil {
		return fmt.Errorf("tag document: %w", err)
	}

	opts := []func(*esapi.IndexRequest){}
	if id != "" {
		opts = append(opts, c.es.Index.WithDocumentID(id))
	}

	_, err = c.do(c.es.Index(c.index, strings.NewReader(tagged), opts...))
	return err
}

// BulkPerform executes a multi-document write. A partial failure in
// the response surfaces as BulkFailError.
func (c *Client) BulkPerform(req *BulkRequest) error {
	if req.Empty() {
		return nil
	}

	body, err := c.do(c.es.Bulk(
		strings.NewReader(req.Body()),
		c.es.Bulk.WithIndex(c.index),
	))
	if err != nil {
		return err
	}

	if hasErrors, _ := jsonparser.GetBoolean(body, "errors"); hasErrors {
		return &BulkFailError{Body: string(body)}
	}
	return nil
}

// Search runs a query against one collection and returns the raw
// result tree; callers probe hits.total and hits.hits themselves.
func (c *Client) Search(collection string, query string) ([]byte, error) {
	scoped, err := scopedQuery(collection, query)
	if err != nil {
		return nil, fmt.Errorf("scope query: %w", err)
	}

	return c.do(c.es.Search(
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(strings.NewReader(scoped)),
	))
}

func (c *Client) DeleteByQuery(collection string, query string) error {
	scoped, err := scopedQuery(collection, query)
	if err != nil {
		return fmt.Errorf("scope query: %w", err)
	}

	_, err = c.do(c.es.DeleteByQuery(
		[]string{c.index},
		strings.NewReader(scoped),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithRefresh(true),
	))
	return err
}

func (c *Client) CountDoc(collection string) (int64, error) {
	query := fmt.Sprintf(`{"query":{"term":{"doc_type":%q}}}`, collection)

	body, err := c.do(c.es.Count(
		c.es.Count.WithIndex(c.index),
		c.es.Count.WithBody(strings.NewReader(query)),
	))
	if err != nil {
		return 0, err
	}

	count, perr := jsonparser.GetInt(body, "count")
	if perr != nil {
		return 0, fmt.Errorf("parse count response: %w", perr)
	}
	return count, nil
}

func withDocType(collection string, doc string) (string, error) {
	tagged, err := jsonparser.Set([]byte(doc), []byte(fmt.Sprintf("%q", collection)), "doc_type")
	if err != nil {
		return "", err
	}
	return string(tagged), nil
}

// scopedQuery wraps the caller's query with a doc_type filter so it
// only sees its own collection.
func scopedQuery(collection string, query string) (string, error) {
	inner := []byte(`{"match_all":{}}`)
	if query != "" {
		value, dataType, _, err := jsonparser.Get([]byte(query), "query")
		if err == nil && dataType == jsonparser.Object {
			inner = value
		} else if err != nil && err != jsonparser.KeyPathNotFoundError {
			return "", err
		}
	}
	return fmt.Sprintf(
		`{"query":{"bool":{"must":[%s],"filter":{"term":{"doc_type":%q}}}}}`,
		inner, collection,
	), nil
}
