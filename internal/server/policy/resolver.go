// Package policy resolves effective retention and size limits for a
// newsgroup from the configuration snapshot.
package policy

import (
	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/wildmat"
)

// RetentionPolicy is the effective limit set for one newsgroup. It is
// derived, never stored; callers resolve it against the snapshot they hold.
type RetentionPolicy struct {
	RetentionDays   int
	MaxArticleBytes int64
}

// Resolve computes the policy for group against cfg.
//
// Precedence: an exact-name rule always wins over pattern rules, regardless
// of declaration order; otherwise the first matching pattern rule in
// declaration order applies; with no match the global defaults stand. A
// matching rule with a zero-valued field falls back to the default for that
// field only. Deterministic for identical input.
func Resolve(group string, cfg *config.Config) RetentionPolicy {
	p := RetentionPolicy{
		RetentionDays:   cfg.DefaultRetentionDays,
		MaxArticleBytes: cfg.DefaultMaxArticleBytes,
	}

	if rule, ok := matchRule(group, cfg.GroupSettings); ok {
		if rule.RetentionDays != 0 {
			p.RetentionDays = rule.RetentionDays
		}
		if rule.MaxArticleBytes != 0 {
			p.MaxArticleBytes = rule.MaxArticleBytes
		}
	}

	return p
}

// MaxSizeForGroups returns the strictest MaxArticleBytes across the given
// target groups. The size filter enforces the tightest limit of any group
// the article is crossposted to.
func MaxSizeForGroups(groups []string, cfg *config.Config) int64 {
	var strictest int64
	for _, g := range groups {
		max := Resolve(g, cfg).MaxArticleBytes
		if max > 0 && (strictest == 0 || max < strictest) {
			strictest = max
		}
	}
	return strictest
}

func matchRule(group string, rules []config.GroupRule) (config.GroupRule, bool) {
	for _, r := range rules {
		if r.Group == group {
			return r, true
		}
	}
	for _, r := range rules {
		if r.Pattern != "" && wildmat.Match(r.Pattern, group) {
			return r, true
		}
	}
	return config.GroupRule{}, false
}
