package abicache

import (
	"container/list"
	"encoding/json"
	"fmt"

	goeosio "github.com/greymass/go-eosio/pkg/chain"

	"github.com/buger/jsonparser"
	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

// Cache is a bounded account -> serializer cache with least recently
// used eviction. Misses are resolved by fetching the account's abi
// document from the backend. Only the consumer worker touches it, so
// there is no locking.
type Cache struct {
	client  *elastic.Client
	maxSize int

	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type cacheEntry struct {
	account    string
	serializer *Serializer
}

func New(client *elastic.Client, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		client:  client,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the serializer for an account, or nil when the account
// has no usable ABI. Backend and parse failures are logged and treated
// as "no ABI": user data must not stop ingestion.
func (c *Cache) Get(account string) *Serializer {
	if account == "" {
		return nil
	}

	if el, ok := c.entries[account]; ok {
		c.order.MoveToFront(el)
		metrics.AbiCacheHits.Inc()
		return el.Value.(*cacheEntry).serializer
	}
	metrics.AbiCacheMisses.Inc()

	serializer, err := c.fetch(account)
	if err != nil {
		logger.Printf("abi", "unable to load abi for %s: %v", account, err)
		return nil
	}
	if serializer == nil {
		return nil
	}

	c.purge()
	el := c.order.PushFront(&cacheEntry{account: account, serializer: serializer})
	c.entries[account] = el
	return serializer
}

// Evict drops an account, forcing a refetch on next use. Called when a
// setabi for the account is observed.
func (c *Cache) Evict(account string) {
	if el, ok := c.entries[account]; ok {
		c.order.Remove(el)
		delete(c.entries, account)
	}
}

func (c *Cache) Len() int { return len(c.entries) }

// purge makes room for one insert by evicting the least recently used
// entry once the cache is at capacity.
func (c *Cache) purge() {
	if len(c.entries) < c.maxSize {
		return
	}
	back := c.order.Back()
	if back == nil {
		return
	}
	evicted := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.entries, evicted.account)
	metrics.AbiCacheEvictions.Inc()
}

func (c *Cache) fetch(account string) (*Serializer, error) {
	query := fmt.Sprintf(`{"query":{"term":{"name":%q}}}`, account)
	result, err := c.client.Search(elastic.Accounts, query)
	if err != nil {
		return nil, err
	}

	if elastic.HitsTotal(result) != 1 {
		return nil, nil
	}
	hit, ok := elastic.FirstHit(result)
	if !ok {
		return nil, nil
	}

	abiJSON, dataType, _, err := jsonparser.Get(hit, "_source", "abi")
	if err != nil || dataType != jsonparser.Object {
		return nil, nil
	}

	var parsed goeosio.Abi
	if err := json.Unmarshal(abiJSON, &parsed); err != nil {
		logger.Printf("abi", "unable to convert account abi to abi_def for %s", account)
		return nil, nil
	}

	return &Serializer{
		abi:           &parsed,
		decodesAbiDef: account == chain.SystemAccount && hasSetabiBytesField(abiJSON),
	}, nil
}
