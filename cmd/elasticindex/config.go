package main

import "time"

type Config struct {
	// Backend
	ElasticURLs          []string `name:"elastic-urls" alias:"elastic-url" default:"http://localhost:9200" help:"Elasticsearch endpoint URL(s), comma separated"`
	IndexName            string   `name:"index-name" default:"eos" help:"Physical index name"`
	DeleteIndexOnStartup bool     `name:"delete-index-on-startup" help:"DESTRUCTIVE: drop the index before starting"`

	// Event source
	RelayURL string `name:"relay-url" default:"ws://localhost:9402/stream" help:"Websocket URL of the node event relay"`
	ChainID  string `name:"chain-id" help:"Chain id (hex), used to recover transaction signing keys"`

	// Ingestion
	MaxQueueSize         int           `name:"max-queue-size" default:"1024" help:"Soft bound per ingress queue before producers throttle"`
	AbiCacheSize         int           `name:"abi-cache-size" default:"2048" help:"Maximum accounts held in the ABI cache"`
	AbiSerializerMaxTime time.Duration `name:"abi-serializer-max-time" default:"500ms" help:"Per-payload decode time budget"`
	StartBlockNum        uint32        `name:"start-block-num" default:"0" help:"Suppress block/trace indexing until this block (0 = from genesis)"`

	// Collections
	StoreBlocks            bool `name:"store-blocks" default:"true" help:"Index decoded block bodies"`
	StoreBlockStates       bool `name:"store-block-states" default:"true" help:"Index block state audit documents"`
	StoreTransactions      bool `name:"store-transactions" default:"true" help:"Index accepted transactions"`
	StoreTransactionTraces bool `name:"store-transaction-traces" default:"true" help:"Index full transaction traces"`
	StoreActionTraces      bool `name:"store-action-traces" default:"true" help:"Index flattened action traces"`

	// Filtering
	FilterOn  []string `name:"filter-on" default:"*" help:"Allow rules receiver:action:actor ('*' components wildcard; bare '*' allows all)"`
	FilterOut []string `name:"filter-out" help:"Deny rules receiver:action:actor; deny beats allow"`

	// Observability
	MetricsListen string   `name:"metrics-listen" default:"none" help:"Metrics endpoint address ('none' to disable)"`
	LogFilter     []string `name:"log-filter" default:"startup,sync,stream,abi" help:"Log category filter (comma-separated)"`
	LogFile       string   `name:"log-file" help:"Log output file path (logs to both stdout and file when set)"`
	Debug         bool     `help:"Enable debug logging (all categories)"`
}
