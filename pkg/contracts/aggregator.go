package contracts

import (
	"context"
)

// ProjectCard is the denormalized per-instance view the UI renders as a card.
// The aggregator returns these in one round trip; the fallback path assembles
// them from registry and adapter reads.
type ProjectCard struct {
	Instance         string `json:"instance"`
	Name             string `json:"name"`
	MetadataURI      string `json:"metadata_uri"`
	Creator          string `json:"creator"`
	RegisteredAt     int64  `json:"registered_at"`
	Factory          string `json:"factory"`
	ContractType     string `json:"contract_type"`
	Vault            string `json:"vault"`
	CurrentPrice     string `json:"current_price"`
	TotalSupply      string `json:"total_supply"`
	MaxSupply        string `json:"max_supply"`
	IsActive         bool   `json:"is_active"`
	FeaturedPosition int    `json:"featured_position"`
	FeaturedExpires  int64  `json:"featured_expires"`

	// Fetch sets this when the per-entity fallback read failed and the card
	// is a placeholder rather than real data.
	Unavailable bool `json:"unavailable,omitempty"`
}

// HomePageData is the aggregate answering the home page in one query.
type HomePageData struct {
	Projects       []ProjectCard  `json:"projects"`
	TotalFeatured  int            `json:"total_featured"`
	TopVaults      []VaultSummary `json:"top_vaults"`
	RecentActivity []ActivityItem `json:"recent_activity"`
}

// ActivityItem is one entry in the home page activity feed.
type ActivityItem struct {
	Instance        string `json:"instance"`
	Kind            string `json:"kind"`
	Actor           string `json:"actor"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transaction_hash"`
	Timestamp       int64  `json:"timestamp"`
}

// VaultSummary is one row of the vault leaderboard.
type VaultSummary struct {
	Vault         string `json:"vault"`
	Name          string `json:"name"`
	TVL           string `json:"tvl"`
	InstanceCount int    `json:"instance_count"`
}

// Holding is one token position held by a user in a project instance.
type Holding struct {
	Instance string `json:"instance"`
	Balance  string `json:"balance"`
	TokenID  string `json:"token_id,omitempty"`
}

// VaultPosition is one staked/deposited position in a vault.
type VaultPosition struct {
	Vault     string `json:"vault"`
	Deposited string `json:"deposited"`
	Claimable string `json:"claimable"`
}

// PortfolioData aggregates everything a user holds across instances.
type PortfolioData struct {
	ERC404Holdings  []Holding       `json:"erc404_holdings"`
	ERC1155Holdings []Holding       `json:"erc1155_holdings"`
	VaultPositions  []VaultPosition `json:"vault_positions"`
	TotalClaimable  string          `json:"total_claimable"`
}

// AggregatorGateway is the batched query backend. One gateway call answers a
// compound question that would otherwise take N per-entity round trips.
type AggregatorGateway interface {
	// Ping performs a lightweight capability check. A nil return means the
	// gateway is reachable and answering.
	Ping(ctx context.Context) error

	// HomePageData returns the home page aggregate for one page window.
	HomePageData(ctx context.Context, offset, limit int) (HomePageData, error)

	// ProjectCardsBatch returns one card per requested address, in request order.
	ProjectCardsBatch(ctx context.Context, addresses []string) ([]ProjectCard, error)

	// PortfolioData returns the user's positions across the given instances.
	PortfolioData(ctx context.Context, userAddress string, instances []string) (PortfolioData, error)

	// VaultLeaderboard returns the top vaults ordered by the given sort key.
	VaultLeaderboard(ctx context.Context, sortBy string, limit int) ([]VaultSummary, error)
}

// LaunchDetector reports whether the aggregator backend deployment exists at
// all. Before launch the deployment is absent and every query must degrade to
// its typed-empty shape instead of erroring.
type LaunchDetector interface {
	// Launched returns false while the backend deployment does not exist yet.
	// Errors are treated by callers as "unknown", not as "pre-launch".
	Launched(ctx context.Context) (bool, error)
}
