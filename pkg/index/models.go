package index

import (
	"strings"
)

// IndexedEntity is one registered on-ledger instance as stored in the local
// index. Address is the primary key, lowercase-normalized. Event-derived
// fields are set at insert time; enrichment fields stay zero until hydration.
type IndexedEntity struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	NameLower       string `json:"name_lower"`
	Factory         string `json:"factory"`
	Creator         string `json:"creator"`
	Vault           string `json:"vault"`
	ContractType    string `json:"contract_type"`
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash"`
	RegisteredAt    int64  `json:"registered_at"`
	Indexed         bool   `json:"indexed"`
	Hydrated        bool   `json:"hydrated"`
}

// Checkpoint tracks how far the local index has synced.
// LastIndexedBlock only advances after every entity in the covered range has
// been durably committed.
type Checkpoint struct {
	LastIndexedBlock uint64 `json:"last_indexed_block"`
	Mode             string `json:"mode"`
}

// Filter selects entities by exact-match secondary fields. Zero-value fields
// are ignored; when exactly one field is set the query runs off that field's
// secondary index.
type Filter struct {
	ContractType string
	Vault        string
	Creator      string
	Factory      string
}

// Partial carries a merge-update for hydration. Nil fields are left as-is.
type Partial struct {
	Name         *string
	Vault        *string
	ContractType *string
	RegisteredAt *int64
	Hydrated     *bool
}

// NormalizeAddress lowercases and trims an address so it can serve as a
// primary key. The index never stores checksummed forms.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
