package chain

import (
	"encoding/binary"
	"fmt"
)

// Native binary decoding for the handful of system contract actions the
// account projection interprets. These cannot go through the ABI cache:
// they are the actions that mutate it.

type KeyWeight struct {
	Key    string `json:"key"`
	Weight uint16 `json:"weight"`
}

type PermissionLevelWeight struct {
	Permission PermissionLevel `json:"permission"`
	Weight     uint16          `json:"weight"`
}

type WaitWeight struct {
	WaitSec uint32 `json:"wait_sec"`
	Weight  uint16 `json:"weight"`
}

type Authority struct {
	Threshold uint32                  `json:"threshold"`
	Keys      []KeyWeight             `json:"keys"`
	Accounts  []PermissionLevelWeight `json:"accounts"`
	Waits     []WaitWeight            `json:"waits"`
}

type NewAccount struct {
	Creator string
	Name    string
	Owner   Authority
	Active  Authority
}

type UpdateAuth struct {
	Account    string
	Permission string
	Parent     string
	Auth       Authority
}

type DeleteAuth struct {
	Account    string
	Permission string
}

type SetAbi struct {
	Account string
	Abi     []byte
}

type binReader struct {
	data []byte
	pos  int
}

func (r *binReader) remaining() int { return len(r.data) - r.pos }

func (r *binReader) name() (string, error) {
	if r.remaining() < 8 {
		return "", fmt.Errorf("name: %d bytes left", r.remaining())
	}
	n := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return NameToString(n), nil
}

func (r *binReader) uint16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("uint16: %d bytes left", r.remaining())
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *binReader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("uint32: %d bytes left", r.remaining())
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *binReader) varuint32() (uint32, error) {
	var result uint32
	var shift uint
	for {
		if r.remaining() < 1 {
			return 0, fmt.Errorf("varuint32: truncated")
		}
		b := r.data[r.pos]
		r.pos++
		result |= uint32(b&0x7f) << shift
		shift += 7
		if (b & 0x80) == 0 {
			break
		}
		if shift >= 35 {
			return 0, fmt.Errorf("varuint32: overlong")
		}
	}
	return result, nil
}

func (r *binReader) bytes() ([]byte, error) {
	n, err := r.varuint32()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, fmt.Errorf("bytes: want %d, %d left", n, r.remaining())
	}
	out := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *binReader) publicKey() (string, error) {
	if r.remaining() < 34 {
		return "", fmt.Errorf("public_key: %d bytes left", r.remaining())
	}
	keyType := r.data[r.pos]
	r.pos++
	var raw [33]byte
	copy(raw[:], r.data[r.pos:r.pos+33])
	r.pos += 33
	return FormatPublicKey(keyType, raw)
}

func (r *binReader) authority() (Authority, error) {
	var auth Authority
	var err error
	if auth.Threshold, err = r.uint32(); err != nil {
		return auth, err
	}

	nkeys, err := r.varuint32()
	if err != nil {
		return auth, err
	}
	for i := uint32(0); i < nkeys; i++ {
		var kw KeyWeight
		if kw.Key, err = r.publicKey(); err != nil {
			return auth, err
		}
		if kw.Weight, err = r.uint16(); err != nil {
			return auth, err
		}
		auth.Keys = append(auth.Keys, kw)
	}

	naccounts, err := r.varuint32()
	if err != nil {
		return auth, err
	}
	for i := uint32(0); i < naccounts; i++ {
		var plw PermissionLevelWeight
		if plw.Permission.Actor, err = r.name(); err != nil {
			return auth, err
		}
		if plw.Permission.Permission, err = r.name(); err != nil {
			return auth, err
		}
		if plw.Weight, err = r.uint16(); err != nil {
			return auth, err
		}
		auth.Accounts = append(auth.Accounts, plw)
	}

	nwaits, err := r.varuint32()
	if err != nil {
		return auth, err
	}
	for i := uint32(0); i < nwaits; i++ {
		var ww WaitWeight
		if ww.WaitSec, err = r.uint32(); err != nil {
			return auth, err
		}
		if ww.Weight, err = r.uint16(); err != nil {
			return auth, err
		}
		auth.Waits = append(auth.Waits, ww)
	}

	return auth, nil
}

func DecodeNewAccount(data []byte) (*NewAccount, error) {
	r := &binReader{data: data}
	var out NewAccount
	var err error
	if out.Creator, err = r.name(); err != nil {
		return nil, fmt.Errorf("newaccount creator: %w", err)
	}
	if out.Name, err = r.name(); err != nil {
		return nil, fmt.Errorf("newaccount name: %w", err)
	}
	if out.Owner, err = r.authority(); err != nil {
		return nil, fmt.Errorf("newaccount owner: %w", err)
	}
	if out.Active, err = r.authority(); err != nil {
		return nil, fmt.Errorf("newaccount active: %w", err)
	}
	return &out, nil
}

func DecodeUpdateAuth(data []byte) (*UpdateAuth, error) {
	r := &binReader{data: data}
	var out UpdateAuth
	var err error
	if out.Account, err = r.name(); err != nil {
		return nil, fmt.Errorf("updateauth account: %w", err)
	}
	if out.Permission, err = r.name(); err != nil {
		return nil, fmt.Errorf("updateauth permission: %w", err)
	}
	if out.Parent, err = r.name(); err != nil {
		return nil, fmt.Errorf("updateauth parent: %w", err)
	}
	if out.Auth, err = r.authority(); err != nil {
		return nil, fmt.Errorf("updateauth auth: %w", err)
	}
	return &out, nil
}

func DecodeDeleteAuth(data []byte) (*DeleteAuth, error) {
	r := &binReader{data: data}
	var out DeleteAuth
	var err error
	if out.Account, err = r.name(); err != nil {
		return nil, fmt.Errorf("deleteauth account: %w", err)
	}
	if out.Permission, err = r.name(); err != nil {
		return nil, fmt.Errorf("deleteauth permission: %w", err)
	}
	return &out, nil
}

func DecodeSetAbi(data []byte) (*SetAbi, error) {
	r := &binReader{data: data}
	var out SetAbi
	var err error
	if out.Account, err = r.name(); err != nil {
		return nil, fmt.Errorf("setabi account: %w", err)
	}
	if out.Abi, err = r.bytes(); err != nil {
		return nil, fmt.Errorf("setabi abi: %w", err)
	}
	return &out, nil
}
