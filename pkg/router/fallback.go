package router

import (
	"context"
	"errors"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/contracts"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// fallbackTopVaults bounds the vault strip on the fallback home page.
const fallbackTopVaults = 5

// errNoRegistry marks a fallback attempt with no registry collaborator
// wired. Queries degrade to placeholders or typed-empty shapes instead of
// failing.
var errNoRegistry = errors.New("no instance registry configured")

// cardFallback assembles one card from registry and adapter reads.
func (r *Router) cardFallback(ctx context.Context, address string) (contracts.ProjectCard, error) {
	if r.registry == nil {
		return contracts.ProjectCard{}, lierrors.NewEntityFetchError(address, errNoRegistry)
	}

	info, err := r.registry.GetInstance(ctx, address)
	if err != nil {
		return contracts.ProjectCard{}, lierrors.NewEntityFetchError(address, err)
	}

	adapter, ok := r.adapters[info.Kind]
	if !ok {
		return contracts.ProjectCard{}, lierrors.NewEntityFetchError(address,
			lierrors.ErrInvalidInput)
	}

	card, err := adapter.CardData(ctx, address)
	if err != nil {
		return contracts.ProjectCard{}, lierrors.NewEntityFetchError(address, err)
	}

	// Registry data fills whatever the adapter left blank.
	if card.Name == "" {
		card.Name = info.Name
	}
	if card.Creator == "" {
		card.Creator = info.Creator
	}
	if card.Factory == "" {
		card.Factory = info.Factory
	}
	if card.Vault == "" {
		card.Vault = info.Vault
	}
	if card.ContractType == "" {
		card.ContractType = string(info.Kind)
	}
	if card.MetadataURI == "" {
		card.MetadataURI = info.MetadataURI
	}
	if card.RegisteredAt == 0 {
		card.RegisteredAt = info.RegisteredAt
	}
	return card, nil
}

// homePageFallback stitches the home aggregate from registry pages and
// per-entity card fetches. The activity feed needs the aggregator's event
// index and stays empty on this path.
func (r *Router) homePageFallback(ctx context.Context, offset, limit int) (contracts.HomePageData, error) {
	if r.registry == nil {
		return emptyHomePage(), nil
	}

	all, err := r.registry.GetAllInstances(ctx)
	if err != nil {
		return contracts.HomePageData{}, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	page := all[offset:end]

	addrs := make([]string, len(page))
	for i, info := range page {
		addrs[i] = info.Instance
	}
	cards, err := r.ProjectCards(ctx, addrs)
	if err != nil {
		return contracts.HomePageData{}, err
	}

	vaults, err := r.leaderboardFallback(ctx, "tvl", fallbackTopVaults)
	if err != nil {
		// The vault strip is decoration on this path; the page survives
		// without it.
		r.log.ComponentDebug(logging.ComponentRouter, "vault summary fetch failed on fallback home page",
			zap.Error(err))
		vaults = []contracts.VaultSummary{}
	}

	return contracts.HomePageData{
		Projects:       cards,
		TotalFeatured:  0,
		TopVaults:      vaults,
		RecentActivity: []contracts.ActivityItem{},
	}, nil
}

// leaderboardFallback ranks every vault known to the registry. A failed
// per-vault read is skipped, not fatal.
func (r *Router) leaderboardFallback(ctx context.Context, sortBy string, limit int) ([]contracts.VaultSummary, error) {
	if r.registry == nil {
		return []contracts.VaultSummary{}, nil
	}

	all, err := r.registry.GetAllInstances(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var rows []contracts.VaultSummary
	for _, info := range all {
		if info.Vault == "" || seen[info.Vault] {
			continue
		}
		seen[info.Vault] = true

		vi, err := r.registry.GetVaultInfo(ctx, info.Vault)
		if err != nil {
			r.log.ComponentDebug(logging.ComponentRouter, "vault info fetch failed, skipping",
				zap.String("vault", info.Vault), zap.Error(err))
			continue
		}
		rows = append(rows, contracts.VaultSummary{
			Vault:         vi.Vault,
			Name:          vi.Name,
			TVL:           vi.TVL,
			InstanceCount: vi.InstanceCount,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if sortBy == "instances" {
			return rows[i].InstanceCount > rows[j].InstanceCount
		}
		return compareDecimal(rows[i].TVL, rows[j].TVL) > 0
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []contracts.VaultSummary{}
	}
	return rows, nil
}

// portfolioFallback aggregates one user's positions instance by instance.
// Each instance is isolated: a failed read is logged and skipped.
func (r *Router) portfolioFallback(ctx context.Context, userAddress string, instances []string) (contracts.PortfolioData, error) {
	if r.registry == nil {
		return emptyPortfolio(), nil
	}

	out := emptyPortfolio()
	total := new(big.Int)

	for _, inst := range instances {
		info, err := r.registry.GetInstance(ctx, inst)
		if err != nil {
			r.log.ComponentDebug(logging.ComponentRouter, "instance lookup failed in portfolio, skipping",
				zap.String("instance", inst), zap.Error(err))
			continue
		}
		adapter, ok := r.adapters[info.Kind]
		if !ok {
			continue
		}

		holdings, err := adapter.Holdings(ctx, inst, userAddress)
		if err != nil {
			r.log.ComponentDebug(logging.ComponentRouter, "holdings fetch failed, skipping",
				zap.String("instance", inst), zap.Error(err))
			continue
		}

		claimable, err := adapter.Claimable(ctx, inst, userAddress)
		if err != nil {
			claimable = "0"
		}
		if amt, ok := new(big.Int).SetString(claimable, 10); ok {
			total.Add(total, amt)
		}

		switch info.Kind {
		case contracts.KindERC404:
			out.ERC404Holdings = append(out.ERC404Holdings, holdings...)
		case contracts.KindERC1155:
			out.ERC1155Holdings = append(out.ERC1155Holdings, holdings...)
		case contracts.KindVault:
			for _, h := range holdings {
				out.VaultPositions = append(out.VaultPositions, contracts.VaultPosition{
					Vault:     inst,
					Deposited: h.Balance,
					Claimable: claimable,
				})
			}
		}
	}

	out.TotalClaimable = total.String()
	return out, nil
}

// compareDecimal compares two decimal strings numerically, treating
// unparseable values as zero.
func compareDecimal(a, b string) int {
	ai, okA := new(big.Int).SetString(a, 10)
	bi, okB := new(big.Int).SetString(b, 10)
	if !okA {
		ai = new(big.Int)
	}
	if !okB {
		bi = new(big.Int)
	}
	return ai.Cmp(bi)
}
