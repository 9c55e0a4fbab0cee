package peersync

import (
	"context"
	"fmt"
	"net"
	"net/textproto"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/server/config"
	"github.com/dmitrijs2005/newsflow/internal/server/models"
)

// NNTP streaming-mode reply codes (RFC 4644).
const (
	codeCheckWanted   = 238
	codeCheckDeferred = 431
	codeCheckRefused  = 438
	codeTakeOK        = 239
	codeTakeRefused   = 439
)

// NNTPConnector dials peers over plain NNTP in streaming mode.
type NNTPConnector struct{}

func (NNTPConnector) Connect(ctx context.Context, peer config.PeerConfig) (PeerConnection, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", peer.Addr)
	if err != nil {
		return nil, err
	}

	c := &nntpConn{nc: nc, tp: textproto.NewConn(nc)}
	if err := c.handshake(ctx, peer); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

type nntpConn struct {
	nc net.Conn
	tp *textproto.Conn
}

func (c *nntpConn) handshake(ctx context.Context, peer config.PeerConfig) error {
	c.applyDeadline(ctx)

	// 200 or 201 greeting.
	if _, _, err := c.tp.ReadCodeLine(20); err != nil {
		return fmt.Errorf("greeting: %w", err)
	}

	if peer.Username != "" {
		if err := c.tp.PrintfLine("AUTHINFO USER %s", peer.Username); err != nil {
			return err
		}
		if _, _, err := c.tp.ReadCodeLine(381); err != nil {
			return fmt.Errorf("authinfo user: %w", err)
		}
		if err := c.tp.PrintfLine("AUTHINFO PASS %s", peer.Password); err != nil {
			return err
		}
		if _, _, err := c.tp.ReadCodeLine(281); err != nil {
			return fmt.Errorf("authinfo pass: %w", err)
		}
	}

	if err := c.tp.PrintfLine("MODE STREAM"); err != nil {
		return err
	}
	if _, _, err := c.tp.ReadCodeLine(203); err != nil {
		return fmt.Errorf("mode stream: %w", err)
	}
	return nil
}

func (c *nntpConn) Offer(ctx context.Context, messageID string) (bool, error) {
	c.applyDeadline(ctx)

	if err := c.tp.PrintfLine("CHECK %s", messageID); err != nil {
		return false, err
	}
	code, msg, err := c.tp.ReadCodeLine(-1)
	if err != nil {
		return false, err
	}
	switch code {
	case codeCheckWanted:
		return true, nil
	case codeCheckRefused:
		return false, nil
	case codeCheckDeferred:
		return false, ErrDeferred
	default:
		return false, fmt.Errorf("unexpected CHECK reply %d %s", code, msg)
	}
}

func (c *nntpConn) SendArticle(ctx context.Context, a *models.Article) error {
	c.applyDeadline(ctx)

	if err := c.tp.PrintfLine("TAKETHIS %s", a.MessageID()); err != nil {
		return err
	}

	dw := c.tp.DotWriter()
	for _, h := range a.Headers {
		if _, err := fmt.Fprintf(dw, "%s: %s\n", h.Name, h.Value); err != nil {
			dw.Close()
			return err
		}
	}
	if _, err := fmt.Fprint(dw, "\n"); err != nil {
		dw.Close()
		return err
	}
	if _, err := dw.Write(a.Body); err != nil {
		dw.Close()
		return err
	}
	if err := dw.Close(); err != nil {
		return err
	}

	code, msg, err := c.tp.ReadCodeLine(-1)
	if err != nil {
		return err
	}
	switch code {
	case codeTakeOK:
		return nil
	case codeTakeRefused:
		return fmt.Errorf("%w: %s", ErrRefused, msg)
	default:
		return fmt.Errorf("unexpected TAKETHIS reply %d %s", code, msg)
	}
}

func (c *nntpConn) Close() error {
	c.tp.PrintfLine("QUIT")
	return c.nc.Close()
}

// applyDeadline maps the context deadline onto the socket so a stalled
// peer cannot hold a sync run past its timeout.
func (c *nntpConn) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.nc.SetDeadline(dl)
	} else {
		c.nc.SetDeadline(time.Time{})
	}
}
