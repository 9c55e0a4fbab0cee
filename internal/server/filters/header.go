package filters

import (
	"context"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// HeaderFilter rejects articles whose mandatory headers are missing or
// malformed: a Message-ID of the form <...@...>, at least one target
// newsgroup, and a parsable Date.
type HeaderFilter struct{}

func (f *HeaderFilter) Name() string { return "HeaderFilter" }

func (f *HeaderFilter) Evaluate(ctx context.Context, fc *Context, a *models.Article) (Verdict, error) {

	msgID := a.MessageID()
	if msgID == "" {
		return Reject("missing Message-ID"), nil
	}
	if !strings.HasPrefix(msgID, "<") || !strings.HasSuffix(msgID, ">") || !strings.Contains(msgID, "@") {
		return Reject("malformed Message-ID"), nil
	}

	if len(a.Newsgroups()) == 0 {
		return Reject("missing Newsgroups"), nil
	}

	date := a.Headers.Get("Date")
	if date == "" {
		return Reject("missing Date"), nil
	}
	if _, err := mail.ParseDate(date); err != nil {
		return Reject("malformed Date"), nil
	}

	return Accept(), nil
}
