package elastic

// Mappings is the fixed schema installed on the physical index. Only
// the fields the facade queries on are typed explicitly; everything
// else maps dynamically.
const Mappings = `{
  "settings": {
    "index": {
      "number_of_shards": 1,
      "number_of_replicas": 0
    }
  },
  "mappings": {
    "dynamic": true,
    "properties": {
      "doc_type":              { "type": "keyword" },
      "name":                  { "type": "keyword" },
      "account":               { "type": "keyword" },
      "permission":            { "type": "keyword" },
      "public_key":            { "type": "keyword" },
      "controlled_account":    { "type": "keyword" },
      "controlled_permission": { "type": "keyword" },
      "controlling_account":   { "type": "keyword" },
      "block_id":              { "type": "keyword" },
      "trx_id":                { "type": "keyword" },
      "block_num":             { "type": "long" },
      "irreversible":          { "type": "boolean" },
      "createAt":              { "type": "long" },
      "createdAt":             { "type": "long" },
      "updateAt":              { "type": "long" },
      "abi":                   { "type": "object", "enabled": false },
      "block_header_state":    { "type": "object", "enabled": false }
    }
  }
}`
