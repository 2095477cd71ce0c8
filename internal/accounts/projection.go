package accounts

import (
	"encoding/hex"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/greymass/elasticindex/internal/abicache"
	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/elastic"
	"github.com/greymass/elasticindex/internal/encoding"
	"github.com/greymass/elasticindex/internal/logger"
	"github.com/greymass/elasticindex/internal/metrics"
)

// Projection maintains the accounts, pub_keys and account_controls
// collections by interpreting the system contract's account actions.
// Malformed payloads are skipped: user data must not crash ingestion.
// Backend failures are returned for the caller to route.
type Projection struct {
	client *elastic.Client
	cache  *abicache.Cache
}

func New(client *elastic.Client, cache *abicache.Cache) *Projection {
	return &Projection{client: client, cache: cache}
}

// UpdateAccount dispatches one executed system account action.
func (p *Projection) UpdateAccount(act *chain.Action) error {
	if act.Account != chain.SystemAccount {
		return nil
	}

	data, err := hex.DecodeString(act.Data)
	if err != nil {
		return nil
	}

	switch act.Name {
	case chain.NewAccountName:
		return p.applyNewAccount(data)
	case chain.UpdateAuthName:
		return p.applyUpdateAuth(data)
	case chain.DeleteAuthName:
		return p.applyDeleteAuth(data)
	case chain.SetAbiName:
		return p.applySetAbi(data)
	}
	return nil
}

func (p *Projection) applyNewAccount(data []byte) error {
	newacc, err := chain.DecodeNewAccount(data)
	if err != nil {
		logger.Printf("debug", "skipping undecodable newaccount: %v", err)
		return nil
	}
	now := chain.NowMillis()

	if err := p.CreateAccount(newacc.Name, now); err != nil {
		return err
	}

	if err := p.addPubKeys(newacc.Owner.Keys, newacc.Name, chain.OwnerPermission, now); err != nil {
		return err
	}
	if err := p.addAccountControl(newacc.Owner.Accounts, newacc.Name, chain.OwnerPermission, now); err != nil {
		return err
	}
	if err := p.addPubKeys(newacc.Active.Keys, newacc.Name, chain.ActivePermission, now); err != nil {
		return err
	}
	return p.addAccountControl(newacc.Active.Accounts, newacc.Name, chain.ActivePermission, now)
}

func (p *Projection) applyUpdateAuth(data []byte) error {
	update, err := chain.DecodeUpdateAuth(data)
	if err != nil {
		logger.Printf("debug", "skipping undecodable updateauth: %v", err)
		return nil
	}
	now := chain.NowMillis()

	// Stale rows must be gone before the new ones land.
	if err := p.removePubKeys(update.Account, update.Permission); err != nil {
		return err
	}
	if err := p.removeAccountControl(update.Account, update.Permission); err != nil {
		return err
	}
	if err := p.addPubKeys(update.Auth.Keys, update.Account, update.Permission, now); err != nil {
		return err
	}
	return p.addAccountControl(update.Auth.Accounts, update.Account, update.Permission, now)
}

func (p *Projection) applyDeleteAuth(data []byte) error {
	del, err := chain.DecodeDeleteAuth(data)
	if err != nil {
		logger.Printf("debug", "skipping undecodable deleteauth: %v", err)
		return nil
	}

	if err := p.removePubKeys(del.Account, del.Permission); err != nil {
		return err
	}
	return p.removeAccountControl(del.Account, del.Permission)
}

func (p *Projection) applySetAbi(data []byte) error {
	setabi, err := chain.DecodeSetAbi(data)
	if err != nil {
		logger.Printf("debug", "skipping undecodable setabi: %v", err)
		return nil
	}

	// The next decode for this account must see the new schema.
	p.cache.Evict(setabi.Account)

	now := chain.NowMillis()

	hit, found, err := p.FindAccount(setabi.Account)
	if err != nil {
		return err
	}
	if !found {
		if err := p.CreateAccount(setabi.Account, now); err != nil {
			return err
		}
		if hit, found, err = p.FindAccount(setabi.Account); err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	def, derr := abicache.UnpackAbiDef(setabi.Abi)
	if derr != nil {
		// Malformed user ABI: the account doc stays without one.
		logger.Printf("abi", "undecodable abi in setabi for %s: %v", setabi.Account, derr)
		return nil
	}

	doc := map[string]interface{}{
		"name":     setabi.Account,
		"abi":      def,
		"updateAt": now,
	}
	if createAt, cerr := jsonparser.GetInt(hit, "_source", "createAt"); cerr == nil {
		doc["createAt"] = createAt
	} else {
		doc["createAt"] = now
	}

	id, _ := jsonparser.GetString(hit, "_id")
	body, merr := encoding.JSONiter.Marshal(doc)
	if merr != nil {
		return fmt.Errorf("marshal account doc: %w", merr)
	}

	if err := p.client.Index(elastic.Accounts, string(body), id); err != nil {
		return err
	}
	metrics.DocumentsIndexed.WithLabelValues(elastic.Accounts).Inc()
	return nil
}

// CreateAccount writes a bare accounts document.
func (p *Projection) CreateAccount(name string, now int64) error {
	body := fmt.Sprintf(`{"name":%q,"createAt":%d}`, name, now)
	if err := p.client.Index(elastic.Accounts, body, ""); err != nil {
		return err
	}
	metrics.DocumentsIndexed.WithLabelValues(elastic.Accounts).Inc()
	return nil
}

// FindAccount looks an account up by name; returns the raw hit.
func (p *Projection) FindAccount(name string) ([]byte, bool, error) {
	query := fmt.Sprintf(`{"query":{"term":{"name":%q}}}`, name)
	result, err := p.client.Search(elastic.Accounts, query)
	if err != nil {
		return nil, false, err
	}
	if elastic.HitsTotal(result) != 1 {
		return nil, false, nil
	}
	hit, ok := elastic.FirstHit(result)
	return hit, ok, nil
}

// FindBlock looks a blocks document up by block id; hook support for
// the irreversible-block path.
func (p *Projection) FindBlock(blockID string) ([]byte, bool, error) {
	query := fmt.Sprintf(`{"query":{"term":{"block_id":%q}}}`, blockID)
	result, err := p.client.Search(elastic.Blocks, query)
	if err != nil {
		return nil, false, err
	}
	if elastic.HitsTotal(result) != 1 {
		return nil, false, nil
	}
	hit, ok := elastic.FirstHit(result)
	if !ok {
		return nil, false, nil
	}
	source, _, _, serr := jsonparser.Get(hit, "_source")
	if serr != nil {
		return nil, false, nil
	}
	return source, true, nil
}

func (p *Projection) addPubKeys(keys []chain.KeyWeight, name, permission string, now int64) error {
	if len(keys) == 0 {
		return nil
	}

	bulk := elastic.NewBulkRequest()
	for _, kw := range keys {
		doc := fmt.Sprintf(`{"account":%q,"public_key":%q,"permission":%q,"createAt":%d}`,
			name, kw.Key, permission, now)
		if err := bulk.Index(elastic.PubKeys, "", doc); err != nil {
			return err
		}
	}

	if err := p.client.BulkPerform(bulk); err != nil {
		return err
	}
	metrics.DocumentsIndexed.WithLabelValues(elastic.PubKeys).Add(float64(len(keys)))
	return nil
}

func (p *Projection) removePubKeys(name, permission string) error {
	query := fmt.Sprintf(
		`{"query":{"bool":{"must":[{"term":{"account":%q}},{"term":{"permission":%q}}]}}}`,
		name, permission)
	return p.client.DeleteByQuery(elastic.PubKeys, query)
}

func (p *Projection) addAccountControl(controlling []chain.PermissionLevelWeight, name, permission string, now int64) error {
	if len(controlling) == 0 {
		return nil
	}

	bulk := elastic.NewBulkRequest()
	for _, plw := range controlling {
		doc := fmt.Sprintf(
			`{"controlled_account":%q,"controlled_permission":%q,"controlling_account":%q,"createAt":%d}`,
			name, permission, plw.Permission.Actor, now)
		if err := bulk.Index(elastic.AccountControls, "", doc); err != nil {
			return err
		}
	}

	if err := p.client.BulkPerform(bulk); err != nil {
		return err
	}
	metrics.DocumentsIndexed.WithLabelValues(elastic.AccountControls).Add(float64(len(controlling)))
	return nil
}

func (p *Projection) removeAccountControl(name, permission string) error {
	query := fmt.Sprintf(
		`{"query":{"bool":{"must":[{"term":{"controlled_account":%q}},{"term":{"controlled_permission":%q}}]}}}`,
		name, permission)
	return p.client.DeleteByQuery(elastic.AccountControls, query)
}
