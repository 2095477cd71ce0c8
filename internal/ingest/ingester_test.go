package ingest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/elastic/elastictest"
	"github.com/greymass/elasticindex/internal/filter"
)

func defaultOptions() Options {
	return Options{
		MaxQueueSize:           1024,
		AbiCacheSize:           16,
		StoreBlocks:            true,
		StoreBlockStates:       true,
		StoreTransactions:      true,
		StoreTransactionTraces: true,
		StoreActionTraces:      true,
	}
}

func newTestIngester(t *testing.T, s *elastictest.Server, f *filter.Filter, opts Options) (*Ingester, *atomic.Bool) {
	t.Helper()
	client, err := elastic.NewClient([]string{s.URL}, "eos")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	var quitCalled atomic.Bool
	in := New(client, f, opts, func() { quitCalled.Store(true) })
	return in, &quitCalled
}

// runConsumer drains everything already enqueued, then shuts the
// worker down.
func runConsumer(in *Ingester) {
	go in.consumeEvents()
	in.signalDone()
	<-in.consumerDone
}

func starFilter() *filter.Filter {
	return filter.New(true, nil, nil)
}

func transferTrace(executed bool) *chain.TransactionTrace {
	trace := &chain.TransactionTrace{
		ID:       "trace1",
		BlockNum: 5,
		ActionTraces: []chain.ActionTrace{
			{
				Act: chain.Action{
					Account: "eosio.token",
					Name:    "transfer",
					Authorization: []chain.PermissionLevel{
						{Actor: "alice", Permission: "active"},
					},
					Data: "00",
				},
				TrxID: "trace1",
			},
		},
	}
	if executed {
		trace.Receipt = &chain.TransactionReceipt{Status: chain.StatusExecuted}
	}
	return trace
}

func transferMetadata() *chain.TransactionMetadata {
	return &chain.TransactionMetadata{
		ID:          "trx1",
		Accepted:    true,
		SigningKeys: []string{"EOS6MRyAjQq8ud7hVNYcfnVPJqcVpscN5So8BhtHuGYqET5GDW5CV"},
		Trx: chain.SignedTransaction{
			Expiration: "2018-01-01T00:00:00.000",
			Actions: []chain.Action{
				{
					Account: "eosio.token",
					Name:    "transfer",
					Authorization: []chain.PermissionLevel{
						{Actor: "alice", Permission: "active"},
					},
					Data: "00",
				},
			},
		},
	}
}

func blockState(num uint32) *chain.BlockState {
	return &chain.BlockState{
		BlockNum:       num,
		ID:             fmt.Sprintf("block%08d", num),
		Validated:      true,
		InCurrentChain: true,
		Block: &chain.SignedBlock{
			Timestamp: "2018-01-01T00:00:00.000",
			Producer:  "producera",
		},
	}
}

func docsFor(s *elastictest.Server, collection string) []elastictest.Request {
	var out []elastictest.Request
	for _, r := range s.RequestsMatching("/_doc") {
		if strings.Contains(r.Body, fmt.Sprintf(`"doc_type":%q`, collection)) {
			out = append(out, r)
		}
	}
	return out
}

// Scenario: allow-all filter, one executed transfer. One action trace,
// one transaction trace, one transaction.
func TestSingleTransferAllIn(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, quit := newTestIngester(t, s, starFilter(), defaultOptions())

	in.AppliedTransaction(transferTrace(true))
	in.AcceptedTransaction(transferMetadata())
	runConsumer(in)

	bulks := s.RequestsMatching("/_bulk")
	if len(bulks) != 1 {
		t.Fatalf("action trace bulks = %d, want 1", len(bulks))
	}
	if got := strings.Count(bulks[0].Body, `"doc_type":"action_traces"`); got != 1 {
		t.Errorf("action trace docs in bulk = %d, want 1", got)
	}

	if got := len(docsFor(s, elastic.TransactionTraces)); got != 1 {
		t.Errorf("transaction_traces docs = %d, want 1", got)
	}

	trxDocs := docsFor(s, elastic.Transactions)
	if len(trxDocs) != 1 {
		t.Fatalf("transactions docs = %d, want 1", len(trxDocs))
	}
	body := trxDocs[0].Body
	if !strings.Contains(body, `"trx_id":"trx1"`) {
		t.Errorf("transaction doc missing trx_id: %s", body)
	}
	if !strings.Contains(body, `"signing_keys"`) {
		t.Errorf("transaction doc missing cached signing keys: %s", body)
	}
	if !strings.Contains(body, `"accepted":true`) {
		t.Errorf("transaction doc missing flags: %s", body)
	}

	if quit.Load() {
		t.Error("healthy run requested quit")
	}
}

// Scenario: empty allowlist. No trace documents, but transactions and
// blocks still flow.
func TestFilterRejectsAll(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	f := filter.New(false, nil, nil)
	in, _ := newTestIngester(t, s, f, defaultOptions())

	in.AppliedTransaction(transferTrace(true))
	in.AcceptedTransaction(transferMetadata())
	in.AcceptedBlock(blockState(7))
	runConsumer(in)

	if n := len(s.RequestsMatching("/_bulk")); n != 0 {
		t.Errorf("bulks = %d, want 0", n)
	}
	if n := len(docsFor(s, elastic.TransactionTraces)); n != 0 {
		t.Errorf("transaction_traces docs = %d, want 0", n)
	}
	if n := len(docsFor(s, elastic.Transactions)); n != 1 {
		t.Errorf("transactions docs = %d, want 1", n)
	}
	if n := len(docsFor(s, elastic.BlockStates)); n != 1 {
		t.Errorf("block_states docs = %d, want 1", n)
	}
	if n := len(docsFor(s, elastic.Blocks)); n != 1 {
		t.Errorf("blocks docs = %d, want 1", n)
	}
}

// A kept inline child keeps the enclosing transaction trace even when
// its parent was filtered out.
func TestInlineChildSurvivesFilteredParent(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	entries, _, err := filter.ParseEntries([]string{"eosio.token:transfer"})
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}
	f := filter.New(false, entries, nil)
	in, _ := newTestIngester(t, s, f, defaultOptions())

	trace := &chain.TransactionTrace{
		ID:      "trace2",
		Receipt: &chain.TransactionReceipt{Status: chain.StatusExecuted},
		ActionTraces: []chain.ActionTrace{
			{
				Act: chain.Action{Account: "someapp", Name: "notify", Data: "00"},
				InlineTraces: []chain.ActionTrace{
					{Act: chain.Action{Account: "eosio.token", Name: "transfer", Data: "00"}},
				},
			},
		},
	}

	in.AppliedTransaction(trace)
	runConsumer(in)

	bulks := s.RequestsMatching("/_bulk")
	if len(bulks) != 1 {
		t.Fatalf("bulks = %d, want 1", len(bulks))
	}
	if got := strings.Count(bulks[0].Body, `"doc_type":"action_traces"`); got != 1 {
		t.Errorf("kept actions = %d, want just the inline transfer", got)
	}
	if n := len(docsFor(s, elastic.TransactionTraces)); n != 1 {
		t.Errorf("transaction_traces docs = %d, want 1", n)
	}
}

// Scenario: start gate at 100. Nothing block-shaped is written before
// it opens, but account side effects still land.
func TestStartBlockGate(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	opts := defaultOptions()
	opts.StartBlockNum = 100
	in, _ := newTestIngester(t, s, starFilter(), opts)

	if in.StartBlockReached() {
		t.Fatal("gate open before any block")
	}

	// Pre-gate traffic: blocks 1..99 plus a transfer trace and a
	// system newaccount trace.
	var data []byte
	data = appendTestName(data, "eosio")
	data = appendTestName(data, "alice")
	data = appendTestAuthority(data)
	data = appendTestAuthority(data)
	newaccountTrace := &chain.TransactionTrace{
		ID:      "sys1",
		Receipt: &chain.TransactionReceipt{Status: chain.StatusExecuted},
		ActionTraces: []chain.ActionTrace{
			{Act: chain.Action{Account: "eosio", Name: "newaccount", Data: fmt.Sprintf("%x", data)}},
		},
	}

	in.AppliedTransaction(newaccountTrace)
	in.AppliedTransaction(transferTrace(true))
	in.AcceptedBlock(blockState(1))
	in.AcceptedBlock(blockState(99))
	in.AcceptedBlock(blockState(100))
	in.AcceptedBlock(blockState(101))
	runConsumer(in)

	if !in.StartBlockReached() {
		t.Error("gate did not open at block 100")
	}

	blockDocs := docsFor(s, elastic.Blocks)
	if len(blockDocs) != 2 {
		t.Fatalf("blocks docs = %d, want 2 (100 and 101)", len(blockDocs))
	}
	for _, r := range blockDocs {
		if strings.Contains(r.Body, `"block_num":1,`) || strings.Contains(r.Body, `"block_num":99`) {
			t.Errorf("pre-gate block indexed: %s", r.Body)
		}
	}
	if n := len(docsFor(s, elastic.BlockStates)); n != 2 {
		t.Errorf("block_states docs = %d, want 2", n)
	}

	// No trace documents before the gate.
	if n := len(s.RequestsMatching("/_bulk")); n != 0 {
		t.Errorf("bulks = %d, want 0 before the gate", n)
	}
	if n := len(docsFor(s, elastic.TransactionTraces)); n != 0 {
		t.Errorf("transaction_traces docs = %d, want 0", n)
	}

	// The account projection ran anyway.
	if n := len(docsFor(s, elastic.Accounts)); n != 1 {
		t.Errorf("accounts docs = %d, want 1 (pre-gate newaccount)", n)
	}
}

// The gate never closes once opened.
func TestGateMonotonic(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	opts := defaultOptions()
	opts.StartBlockNum = 100
	in, _ := newTestIngester(t, s, starFilter(), opts)

	in.AcceptedBlock(blockState(100))
	in.AcceptedBlock(blockState(50)) // fork-ish: lower number after the gate
	runConsumer(in)

	if !in.StartBlockReached() {
		t.Error("gate closed again")
	}
	if n := len(docsFor(s, elastic.Blocks)); n != 2 {
		t.Errorf("blocks docs = %d, want 2 (gate stays open)", n)
	}
}

// Scenario: backend down mid-stream. One failing write raises the quit
// signal; the consumer still finishes its drain.
func TestBackendFailureQuits(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, quit := newTestIngester(t, s, starFilter(), defaultOptions())

	s.SetFail(500, "/_doc")

	in.AcceptedTransaction(transferMetadata())
	in.AcceptedBlock(blockState(3))

	done := make(chan struct{})
	go func() {
		runConsumer(in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not exit after backend failure")
	}

	if !quit.Load() {
		t.Error("backend failure did not raise the quit signal")
	}
}

// Traces dequeued in a round are processed before blocks from the same
// round, whatever order they arrived in.
func TestDrainOrder(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, _ := newTestIngester(t, s, starFilter(), defaultOptions())

	in.AcceptedBlock(blockState(9))
	in.AppliedTransaction(transferTrace(true))
	runConsumer(in)

	reqs := s.Requests()
	bulkAt, blockAt := -1, -1
	for i, r := range reqs {
		if strings.Contains(r.Path, "/_bulk") && bulkAt < 0 {
			bulkAt = i
		}
		if strings.Contains(r.Path, "/_doc") && strings.Contains(r.Body, `"doc_type":"block_states"`) && blockAt < 0 {
			blockAt = i
		}
	}
	if bulkAt < 0 || blockAt < 0 {
		t.Fatalf("missing requests: bulk=%d block=%d", bulkAt, blockAt)
	}
	if bulkAt > blockAt {
		t.Error("block processed before the trace from the same round")
	}
}

// Non-executed traces update nothing and are not projected, but still
// produce action trace documents per the filter.
func TestNonExecutedTraceSkipsProjection(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, _ := newTestIngester(t, s, starFilter(), defaultOptions())

	trace := transferTrace(false)
	trace.ActionTraces[0].Act = chain.Action{Account: "eosio", Name: "newaccount", Data: "00"}
	in.AppliedTransaction(trace)
	runConsumer(in)

	if n := len(docsFor(s, elastic.Accounts)); n != 0 {
		t.Errorf("non-executed trace reached the projection (%d accounts docs)", n)
	}
}

// Store flags suppress their collections without touching the rest.
func TestStoreFlags(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	opts := defaultOptions()
	opts.StoreBlocks = false
	opts.StoreTransactionTraces = false
	in, _ := newTestIngester(t, s, starFilter(), opts)

	in.AppliedTransaction(transferTrace(true))
	in.AcceptedBlock(blockState(12))
	runConsumer(in)

	if n := len(docsFor(s, elastic.Blocks)); n != 0 {
		t.Errorf("blocks docs = %d with store-blocks off", n)
	}
	if n := len(docsFor(s, elastic.BlockStates)); n != 1 {
		t.Errorf("block_states docs = %d, want 1", n)
	}
	if n := len(docsFor(s, elastic.TransactionTraces)); n != 0 {
		t.Errorf("transaction_traces docs = %d with store-transaction-traces off", n)
	}
	if n := len(s.RequestsMatching("/_bulk")); n != 1 {
		t.Errorf("action trace bulks = %d, want 1", n)
	}
}

// Shutdown drains whatever is still queued.
func TestShutdownDrains(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, _ := newTestIngester(t, s, starFilter(), defaultOptions())

	for i := 0; i < 25; i++ {
		in.AcceptedTransaction(transferMetadata())
	}
	runConsumer(in)

	if n := len(docsFor(s, elastic.Transactions)); n != 25 {
		t.Errorf("transactions docs = %d, want 25", n)
	}
}

// Start drops the index when asked, installs mappings, and seeds the
// system account into an empty accounts collection.
func TestStartInitializesBackend(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	opts := defaultOptions()
	opts.DeleteIndexOnStartup = true
	in, _ := newTestIngester(t, s, starFilter(), opts)

	if err := in.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	in.Stop()

	reqs := s.Requests()
	var sawDelete, sawCreate bool
	for _, r := range reqs {
		if r.Method == "DELETE" && r.Path == "/eos" {
			sawDelete = true
		}
		if r.Method == "PUT" && r.Path == "/eos" {
			if !sawDelete {
				t.Error("index created before the configured delete")
			}
			sawCreate = true
		}
	}
	if !sawDelete || !sawCreate {
		t.Errorf("delete=%v create=%v", sawDelete, sawCreate)
	}

	seeds := docsFor(s, elastic.Accounts)
	if len(seeds) != 1 || !strings.Contains(seeds[0].Body, `"name":"eosio"`) {
		t.Errorf("system account seed = %+v", seeds)
	}
}

// The irreversible hook is inert: queued, drained, nothing written.
func TestIrreversibleBlockNoop(t *testing.T) {
	s := elastictest.New()
	defer s.Close()
	in, _ := newTestIngester(t, s, starFilter(), defaultOptions())

	in.IrreversibleBlock(blockState(4))
	runConsumer(in)

	if n := len(s.Requests()); n != 0 {
		t.Errorf("irreversible block touched the backend (%d requests)", n)
	}
}

func appendTestName(buf []byte, name string) []byte {
	v := chain.StringToName(name)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

// threshold=1, no keys, no accounts, no waits
func appendTestAuthority(buf []byte) []byte {
	buf = append(buf, 1, 0, 0, 0)
	buf = append(buf, 0)
	buf = append(buf, 0)
	buf = append(buf, 0)
	return buf
}
