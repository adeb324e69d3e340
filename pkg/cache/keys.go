package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Key prefixes group cache entries into invalidation scopes. Home-scoped
// aggregates embed entity data, so entity invalidation sweeps them too.
const (
	prefixHome        = "home:"
	prefixCard        = "card:"
	prefixPortfolio   = "portfolio:"
	prefixLeaderboard = "leaderboard:"
)

// KeyHome identifies one home page window.
func KeyHome(offset, limit int) string {
	return fmt.Sprintf("%s%d:%d", prefixHome, offset, limit)
}

// KeyCard identifies one entity's card.
func KeyCard(address string) string {
	return prefixCard + strings.ToLower(address)
}

// KeyPortfolio identifies one user's portfolio over one instance set. The
// set is digested order-insensitively, so the same instances in a different
// order name the same query, while a different set misses the cache.
func KeyPortfolio(userAddress string, instances []string) string {
	norm := make([]string, len(instances))
	for i, inst := range instances {
		norm[i] = strings.ToLower(inst)
	}
	sort.Strings(norm)
	sum := sha256.Sum256([]byte(strings.Join(norm, ",")))
	return fmt.Sprintf("%s%s:%x", prefixPortfolio, strings.ToLower(userAddress), sum[:8])
}

// KeyLeaderboard identifies one leaderboard query.
func KeyLeaderboard(sortBy string, limit int) string {
	return fmt.Sprintf("%s%s:%d", prefixLeaderboard, sortBy, limit)
}
