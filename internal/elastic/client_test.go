package elastic_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/elastic/elastictest"
)

func newClient(t *testing.T, s *elastictest.Server) *elastic.Client {
	t.Helper()
	client, err := elastic.NewClient([]string{s.URL}, "eos")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestInitIndexCreatesWhenMissing(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	if err := client.InitIndex(elastic.Mappings); err != nil {
		t.Fatalf("InitIndex failed: %v", err)
	}

	var sawCreate bool
	for _, r := range s.Requests() {
		if r.Method == "PUT" && r.Path == "/eos" {
			sawCreate = true
			if !strings.Contains(r.Body, "doc_type") {
				t.Error("index create did not carry the mapping schema")
			}
		}
	}
	if !sawCreate {
		t.Error("missing index was not created")
	}
}

func TestIndexTagsDocType(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	if err := client.Index(elastic.Accounts, `{"name":"alice"}`, ""); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	reqs := s.RequestsMatching("/_doc")
	if len(reqs) != 1 {
		t.Fatalf("doc requests = %d, want 1", len(reqs))
	}
	if !strings.Contains(reqs[0].Body, `"doc_type":"accounts"`) {
		t.Errorf("document not tagged with collection: %s", reqs[0].Body)
	}
}

func TestIndexWithID(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	if err := client.Index(elastic.Accounts, `{"name":"alice"}`, "abc123"); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	reqs := s.RequestsMatching("abc123")
	if len(reqs) != 1 {
		t.Fatalf("expected the document id in the path, got %v", s.Requests())
	}
	if reqs[0].Method != "PUT" {
		t.Errorf("method = %s, want PUT", reqs[0].Method)
	}
}

func TestSearchScopesCollection(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	_, err := client.Search(elastic.Accounts, `{"query":{"term":{"name":"alice"}}}`)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	reqs := s.RequestsMatching("/_search")
	if len(reqs) != 1 {
		t.Fatalf("search requests = %d", len(reqs))
	}
	body := reqs[0].Body
	if !strings.Contains(body, `"doc_type":"accounts"`) {
		t.Errorf("search not scoped to collection: %s", body)
	}
	if !strings.Contains(body, `"term":{"name":"alice"}`) {
		t.Errorf("caller query lost in scoping: %s", body)
	}
}

func TestDeleteByQueryScopesCollection(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	err := client.DeleteByQuery(elastic.PubKeys, `{"query":{"term":{"account":"alice"}}}`)
	if err != nil {
		t.Fatalf("DeleteByQuery failed: %v", err)
	}

	reqs := s.RequestsMatching("/_delete_by_query")
	if len(reqs) != 1 {
		t.Fatalf("delete_by_query requests = %d", len(reqs))
	}
	if !strings.Contains(reqs[0].Body, `"doc_type":"pub_keys"`) {
		t.Errorf("delete not scoped: %s", reqs[0].Body)
	}
}

func TestCountDoc(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	s.CountValue = 42
	client := newClient(t, s)

	count, err := client.CountDoc(elastic.Accounts)
	if err != nil {
		t.Fatalf("CountDoc failed: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestBulkBodyFormat(t *testing.T) {
	bulk := elastic.NewBulkRequest()
	if !bulk.Empty() {
		t.Error("fresh bulk not empty")
	}

	if err := bulk.Index(elastic.PubKeys, "", `{"account":"alice"}`); err != nil {
		t.Fatalf("bulk Index failed: %v", err)
	}
	if err := bulk.Index(elastic.PubKeys, "id1", `{"account":"bob"}`); err != nil {
		t.Fatalf("bulk Index failed: %v", err)
	}

	if bulk.Len() != 2 {
		t.Errorf("len = %d, want 2", bulk.Len())
	}

	lines := strings.Split(strings.TrimRight(bulk.Body(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("bulk body lines = %d, want 4", len(lines))
	}
	if lines[0] != `{"index":{}}` {
		t.Errorf("line 0 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"doc_type":"pub_keys"`) {
		t.Errorf("line 1 missing doc_type: %s", lines[1])
	}
	if !strings.Contains(lines[2], `"_id":"id1"`) {
		t.Errorf("line 2 missing id: %s", lines[2])
	}
}

func TestBulkPerformEmptyIsNoop(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	client := newClient(t, s)

	if err := client.BulkPerform(elastic.NewBulkRequest()); err != nil {
		t.Fatalf("empty bulk errored: %v", err)
	}
	if len(s.RequestsMatching("/_bulk")) != 0 {
		t.Error("empty bulk hit the backend")
	}
}

func TestBulkPartialFailure(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	s.BulkErrors = true
	client := newClient(t, s)

	bulk := elastic.NewBulkRequest()
	bulk.Index(elastic.PubKeys, "", `{"account":"alice"}`)

	err := client.BulkPerform(bulk)
	var bulkErr *elastic.BulkFailError
	if !errors.As(err, &bulkErr) {
		t.Fatalf("err = %v, want BulkFailError", err)
	}
}

func TestResponseCodeError(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	s.FailStatus = 500
	client := newClient(t, s)

	err := client.Index(elastic.Blocks, `{"block_num":1}`, "")
	var codeErr *elastic.ResponseCodeError
	if !errors.As(err, &codeErr) {
		t.Fatalf("err = %v, want ResponseCodeError", err)
	}
	if codeErr.Status != 500 {
		t.Errorf("status = %d", codeErr.Status)
	}
}

func TestConnectionError(t *testing.T) {
	s := elastictest.New()
	client := newClient(t, s)
	s.Close()

	err := client.Index(elastic.Blocks, `{"block_num":1}`, "")
	var connErr *elastic.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want ConnectionError", err)
	}
}

func TestHitsTotalForms(t *testing.T) {
	modern := []byte(`{"hits":{"total":{"value":3},"hits":[]}}`)
	if got := elastic.HitsTotal(modern); got != 3 {
		t.Errorf("modern form total = %d", got)
	}

	legacy := []byte(`{"hits":{"total":2,"hits":[]}}`)
	if got := elastic.HitsTotal(legacy); got != 2 {
		t.Errorf("legacy form total = %d", got)
	}

	if got := elastic.HitsTotal([]byte(`{}`)); got != 0 {
		t.Errorf("missing total = %d", got)
	}
}

func TestFirstHit(t *testing.T) {
	result := []byte(`{"hits":{"total":{"value":1},"hits":[{"_id":"a","_source":{"name":"alice"}}]}}`)
	hit, ok := elastic.FirstHit(result)
	if !ok {
		t.Fatal("FirstHit missed")
	}
	if !strings.Contains(string(hit), `"alice"`) {
		t.Errorf("hit = %s", hit)
	}

	if _, ok := elastic.FirstHit([]byte(`{"hits":{"hits":[]}}`)); ok {
		t.Error("FirstHit found something in empty hits")
	}
}
