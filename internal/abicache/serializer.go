package abicache

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/greymass/go-eosio/pkg/abi"
	goeosio "github.com/greymass/go-eosio/pkg/chain"

	"github.com/greymass/elasticindex/internal/chain"
	"github.com/greymass/elasticindex/internal/encoding"
)

// Serializer interprets one account's binary action payloads. For the
// system account the setabi action's abi field is additionally
// unpacked from bytes into a structured abi_def, so documents store
// the schema instead of a blob.
type Serializer struct {
	abi          *goeosio.Abi
	decodesAbiDef bool
}

func (s *Serializer) DecodeAction(action string, data []byte, maxTime time.Duration) (map[string]interface{}, error) {
	start := time.Now()

	decoded, err := s.abi.Decode(bytes.NewReader(data), action)
	if err != nil {
		return nil, fmt.Errorf("failed to decode action %s: %w", action, err)
	}
	if maxTime > 0 && time.Since(start) > maxTime {
		return nil, fmt.Errorf("decoding action %s exceeded the %v budget", action, maxTime)
	}

	decodedMap, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decoded action %s is not a map", action)
	}

	if s.decodesAbiDef && action == chain.SetAbiName {
		rewriteSetabiField(decodedMap)
	}

	return decodedMap, nil
}

// rewriteSetabiField swaps setabi's raw abi bytes for the unpacked
// abi_def. Left alone on any failure; the blob is still valid output.
func rewriteSetabiField(doc map[string]interface{}) {
	raw, ok := doc["abi"].(string)
	if !ok || raw == "" {
		return
	}
	abiBytes, err := hex.DecodeString(raw)
	if err != nil {
		return
	}
	def, err := UnpackAbiDef(abiBytes)
	if err != nil {
		return
	}
	doc["abi"] = def
}

// UnpackAbiDef decodes a binary abi_def blob into a structured map.
func UnpackAbiDef(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty abi blob")
	}

	reader := bytes.NewReader(data)
	decoder := abi.NewDecoder(reader, func(dec *abi.Decoder, v interface{}) (done bool, err error) {
		return false, nil
	})

	var abiStruct goeosio.Abi
	if err := decoder.Decode(&abiStruct); err != nil {
		return nil, fmt.Errorf("failed to decode binary abi: %w", err)
	}

	jsonBytes, err := encoding.JSONiter.Marshal(abiStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal abi: %w", err)
	}

	var def map[string]interface{}
	if err := encoding.JSONiter.Unmarshal(jsonBytes, &def); err != nil {
		return nil, fmt.Errorf("failed to rebuild abi document: %w", err)
	}
	return def, nil
}

// hasSetabiBytesField checks whether an ABI document types the setabi
// struct's abi field as bytes, the shape that triggers the system
// account specialization.
func hasSetabiBytesField(abiJSON []byte) bool {
	var doc struct {
		Structs []struct {
			Name   string `json:"name"`
			Fields []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"fields"`
		} `json:"structs"`
	}
	if err := json.Unmarshal(abiJSON, &doc); err != nil {
		return false
	}
	for _, s := range doc.Structs {
		if s.Name != chain.SetAbiName {
			continue
		}
		for _, f := range s.Fields {
			if f.Name == "abi" && f.Type == "bytes" {
				return true
			}
		}
	}
	return false
}
