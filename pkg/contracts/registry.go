package contracts

import (
	"context"
)

// ContractKind is the closed set of contract families the launchpad deploys.
// The kind is decided once, at registration time, and carried on the record;
// nothing downstream infers it from names or runtime shape.
type ContractKind string

const (
	KindERC404  ContractKind = "erc404"
	KindERC1155 ContractKind = "erc1155"
	KindVault   ContractKind = "vault"
	KindUnknown ContractKind = ""
)

// InstanceInfo is the registry's view of one deployed instance.
type InstanceInfo struct {
	Instance     string
	Name         string
	MetadataURI  string
	Creator      string
	Factory      string
	Vault        string
	Kind         ContractKind
	RegisteredAt int64
}

// FactoryInfo describes one factory contract known to the registry.
type FactoryInfo struct {
	Factory       string
	Kind          ContractKind
	InstanceCount int
}

// VaultInfo describes one vault contract known to the registry.
type VaultInfo struct {
	Vault         string
	Name          string
	TVL           string
	InstanceCount int
}

// InstanceRegistry is the on-chain registry read surface used by the
// per-entity fallback path when the aggregator is unavailable.
type InstanceRegistry interface {
	GetInstance(ctx context.Context, address string) (InstanceInfo, error)
	GetAllInstances(ctx context.Context) ([]InstanceInfo, error)
	GetFactoryInfo(ctx context.Context, factory string) (FactoryInfo, error)
	GetVaultInfo(ctx context.Context, vault string) (VaultInfo, error)
}

// ContractAdapter reads one contract family. The fallback path resolves the
// adapter for an instance's kind and issues per-entity reads through it.
type ContractAdapter interface {
	// Kind returns the contract family this adapter serves.
	Kind() ContractKind

	// CardData assembles the card view for one instance.
	CardData(ctx context.Context, instance string) (ProjectCard, error)

	// Holdings returns the user's positions in one instance.
	Holdings(ctx context.Context, instance, user string) ([]Holding, error)

	// Claimable returns the user's claimable amount in one instance, as a
	// decimal string in the token's base units.
	Claimable(ctx context.Context, instance, user string) (string, error)
}
