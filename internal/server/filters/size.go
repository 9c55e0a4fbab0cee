package filters

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
	"github.com/dmitrijs2005/newsflow/internal/server/policy"
)

// SizeFilter rejects articles larger than the resolved limit of the
// strictest matching target newsgroup.
type SizeFilter struct{}

func (f *SizeFilter) Name() string { return "SizeFilter" }

func (f *SizeFilter) Evaluate(ctx context.Context, fc *Context, a *models.Article) (Verdict, error) {

	max := policy.MaxSizeForGroups(a.Newsgroups(), fc.Cfg)
	if max > 0 && a.Size > max {
		return Reject(fmt.Sprintf("article too large: %d > %d bytes", a.Size, max)), nil
	}

	return Accept(), nil
}
