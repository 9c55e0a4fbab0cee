package filters

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// ModerationFilter holds articles posted to moderated groups by anyone
// without moderator authority over them. An Approved header naming an
// authorized moderator, with a valid detached signature by that
// moderator's registered key, overrides the hold.
type ModerationFilter struct{}

func (f *ModerationFilter) Name() string { return "ModerationFilter" }

// ApprovalPayload is the canonical byte string a moderator signs to
// approve an article: Message-ID, target groups, and the Approved header
// value, newline-separated. Covering the ID and groups ties the signature
// to this article so it cannot be replayed onto another.
func ApprovalPayload(a *models.Article) []byte {
	return []byte(a.MessageID() + "\n" +
		strings.Join(a.Newsgroups(), ",") + "\n" +
		a.Headers.Get("Approved"))
}

func (f *ModerationFilter) Evaluate(ctx context.Context, fc *Context, a *models.Article) (Verdict, error) {

	verdict := Accept()

	// The approval signature covers the whole article, so verify it once.
	approvalChecked := false
	approvalValid := false
	approver := a.Headers.Get("Approved")

	checkApproval := func() (bool, error) {
		if approvalChecked {
			return approvalValid, nil
		}
		approvalChecked = true
		sig := a.Headers.Get("X-Approved-Signature")
		if approver == "" || sig == "" {
			return false, nil
		}
		if err := fc.Authority.VerifyAdmin(ctx, approver, ApprovalPayload(a), []byte(sig)); err != nil {
			return false, nil
		}
		approvalValid = true
		return true, nil
	}

	for _, group := range a.Newsgroups() {
		moderated, err := fc.Groups.IsModerated(ctx, group)
		if err != nil {
			return Verdict{}, err
		}
		if !moderated {
			continue
		}

		if fc.Submitter != "" {
			ok, err := fc.Authority.HasModeratorAuthority(ctx, fc.Submitter, group)
			if err != nil {
				return Verdict{}, err
			}
			if ok {
				continue
			}
		}

		if valid, err := checkApproval(); err != nil {
			return Verdict{}, err
		} else if valid {
			ok, err := fc.Authority.HasModeratorAuthority(ctx, approver, group)
			if err != nil {
				return Verdict{}, err
			}
			if ok {
				continue
			}
		}

		verdict = verdict.Worst(Hold(fmt.Sprintf("moderated group %s requires approval", group)))
	}

	return verdict, nil
}
