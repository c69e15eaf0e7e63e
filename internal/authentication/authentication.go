// Package authentication matches a probe face against the enrolled identities.
package authentication

import (
	"context"

	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
)

// ErrNoFaceDetected is returned for a probe without a face. It is distinct from
// a rejected Outcome.
var ErrNoFaceDetected = descriptor.ErrNoFace

// Repository is the part of identity.Repository authentication needs.
type Repository interface {
	List() []identity.Identity
	DescriptorSize() int
}

// Authenticator answers "who is this?" for a probe descriptor.
type Authenticator struct {
	repo    Repository
	matcher *facematch.Matcher
	log     *logger.Logger
}

// New creates an Authenticator.
func New(repo Repository, matcher *facematch.Matcher, log *logger.Logger) *Authenticator {
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{repo: repo, matcher: matcher, log: log.With("component", "authentication")}
}

// Matcher returns the matcher used for decisions.
func (a *Authenticator) Matcher() *facematch.Matcher {
	return a.matcher
}

// Authenticate validates probe and matches it against a snapshot of the repository.
func (a *Authenticator) Authenticate(ctx context.Context, probe descriptor.Descriptor) (facematch.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return facematch.Outcome{}, err
	}
	if err := descriptor.Validate(probe, a.repo.DescriptorSize()); err != nil {
		return facematch.Outcome{}, err
	}

	candidates := a.repo.List()
	outcome := a.matcher.FindBestMatch(probe, candidates)
	a.log.Info("authentication decision",
		"accepted", outcome.Accepted,
		"name", outcome.Name,
		"distance", outcome.Distance,
		"candidates", len(candidates),
	)
	return outcome, nil
}
