package filters

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// GroupExistenceFilter rejects articles targeting a newsgroup the store
// does not know.
type GroupExistenceFilter struct{}

func (f *GroupExistenceFilter) Name() string { return "GroupExistenceFilter" }

func (f *GroupExistenceFilter) Evaluate(ctx context.Context, fc *Context, a *models.Article) (Verdict, error) {

	for _, group := range a.Newsgroups() {
		exists, err := fc.Groups.Exists(ctx, group)
		if err != nil {
			return Verdict{}, err
		}
		if !exists {
			return Reject(fmt.Sprintf("no such newsgroup: %s", group)), nil
		}
	}

	return Accept(), nil
}
