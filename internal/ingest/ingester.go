package ingest

import (
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greymass/elasticindex/internal/abicache"
	"github.com/greymass/elasticindex/internal/accounts"
	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/decode"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/enforce"
	"github.com/greymass/elasticindex/internal/filter"
	"github.com/greymass/elasticindex/internal/logger"
)

type Options struct {
	MaxQueueSize         int
	AbiCacheSize         int
	AbiSerializerMaxTime time.Duration
	StartBlockNum        uint32
	DeleteIndexOnStartup bool
	ChainID              string // hex

	StoreBlocks            bool
	StoreBlockStates       bool
	StoreTransactions      bool
	StoreTransactionTraces bool
	StoreActionTraces      bool
}

// Ingester owns the four ingress queues and the single consumer worker
// that drains them into the backend. Producers only touch the queues
// under the shared mutex; everything else (cache, decoder, buffers) is
// consumer-only state.
type Ingester struct {
	opts       Options
	client     *elastic.Client
	cache      *abicache.Cache
	decoder    *decode.Decoder
	projection *accounts.Projection
	filter     *filter.Filter

	chainID []byte

	mtx            sync.Mutex
	cond           *sync.Cond
	queueSleepTime int // ms, shared adaptive backpressure counter
	done           bool

	trxQueue          []*chain.TransactionMetadata
	traceQueue        []*chain.TransactionTrace
	blockQueue        []*chain.BlockState
	irreversibleQueue []*chain.BlockState

	startBlockReached atomic.Bool

	quit     func()
	quitOnce sync.Once

	consumerDone chan struct{}
}

// New wires the ingestion pipeline. The quit callback is invoked once
// on a non-recoverable backend error; the host decides how to die.
func New(client *elastic.Client, f *filter.Filter, opts Options, quit func()) *Ingester {
	enforce.ENFORCE(client != nil, "ingester needs a backend client")
	enforce.ENFORCE(f != nil, "ingester needs an action filter")
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 1024
	}
	if opts.AbiCacheSize <= 0 {
		opts.AbiCacheSize = 2048
	}

	cache := abicache.New(client, opts.AbiCacheSize)

	in := &Ingester{
		opts:         opts,
		client:       client,
		cache:        cache,
		decoder:      decode.New(cache, opts.AbiSerializerMaxTime),
		projection:   accounts.New(client, cache),
		filter:       f,
		quit:         quit,
		consumerDone: make(chan struct{}),
	}
	in.cond = sync.NewCond(&in.mtx)

	if opts.ChainID != "" {
		id, err := hex.DecodeString(opts.ChainID)
		if err != nil {
			logger.Warning("ignoring malformed chain id %q: %v", opts.ChainID, err)
		} else {
			in.chainID = id
		}
	}

	if opts.StartBlockNum == 0 {
		in.startBlockReached.Store(true)
	}

	return in
}

func (in *Ingester) StartBlockReached() bool { return in.startBlockReached.Load() }

// Start prepares the physical index and launches the consumer worker.
// Signal subscription is the caller's business: wire the stream to the
// Accepted*/Applied* producer methods once Start returns.
func (in *Ingester) Start() error {
	if in.opts.DeleteIndexOnStartup {
		logger.Printf("startup", "drop elasticsearch index")
		if err := in.client.DeleteIndex(); err != nil {
			return err
		}
	}

	logger.Printf("startup", "create elasticsearch index")
	if err := in.client.InitIndex(elastic.Mappings); err != nil {
		return err
	}

	count, err := in.client.CountDoc(elastic.Accounts)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := in.projection.CreateAccount(chain.SystemAccount, chain.NowMillis()); err != nil {
			return err
		}
	}

	logger.Printf("startup", "starting consumer worker")
	go in.consumeEvents()
	return nil
}

// Stop asks the consumer to finish and waits for it to drain. Detach
// the event source before calling this so nothing new is enqueued.
func (in *Ingester) Stop() {
	logger.Printf("sync", "shutdown in process please be patient this can take a few minutes")
	in.signalDone()
	<-in.consumerDone
}

func (in *Ingester) signalDone() {
	in.mtx.Lock()
	in.done = true
	in.mtx.Unlock()
	in.cond.Broadcast()
}

func (in *Ingester) requestQuit() {
	in.quitOnce.Do(func() {
		if in.quit != nil {
			in.quit()
		}
	})
}
