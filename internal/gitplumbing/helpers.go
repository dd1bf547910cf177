package gitplumbing

import (
	"context"
	"errors"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

const filemodeDir = filemode.Dir

// storerErrStop is a sentinel used to break out of a ForEach early once the
// caller-requested limit is reached, the same shape go-git's own iterators
// use internally (compare storer.ErrStop).
var storerErrStop = errors.New("gitplumbing: stop iteration")

func readFull(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}

func commitInfoOf(c *object.Commit) ports.CommitInfo {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return ports.CommitInfo{
		OID:            c.Hash.String(),
		TreeOID:        c.TreeHash.String(),
		ParentOIDs:     parents,
		AuthorName:     c.Author.Name,
		AuthorEmail:    c.Author.Email,
		AuthorWhen:     c.Author.When,
		CommitterName:  c.Committer.Name,
		CommitterEmail: c.Committer.Email,
		CommitterWhen:  c.Committer.When,
		Message:        c.Message,
	}
}

// translateOpenErr maps PlainOpen failures into the taxonomy: a missing
// repository directory is USER_ACTIONABLE (NOT_FOUND), anything else is
// INTERNAL.
func translateOpenErr(err error, dir string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return errs.Wrap(errs.NotFound, "repository not found at directory", err).
			With("operation", "open").With("dir", dir)
	}
	return errs.Wrap(errs.Internal, "could not open repository", err).
		With("operation", "open").With("dir", dir)
}

// translateNetErr maps network-bearing call failures per spec §7: context
// deadline/cancellation are distinguished from transport failures, which are
// retriable.
func translateNetErr(err error, operation, dir string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.Timeout, operation+" exceeded its deadline", err).
			With("operation", operation).With("dir", dir)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.OperationAborted, operation+" was canceled", err).
			With("operation", operation).With("dir", dir)
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return errs.Wrap(errs.AuthRequired, operation+" requires authentication", err).
			With("operation", operation).With("dir", dir)
	default:
		return errs.Wrap(errs.NetworkError, operation+" failed", err).
			With("operation", operation).With("dir", dir)
	}
}
