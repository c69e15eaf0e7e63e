// Package enrollment drives registering a new identity: collect a name, then
// collect a face, then commit both to the identity repository.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
)

var (
	// ErrEmptyName is returned when the submitted name is empty after trimming.
	ErrEmptyName = errors.New("name is empty")
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current enrollment state")
	// ErrNoFaceDetected is returned when a face submission carries no descriptor.
	ErrNoFaceDetected = descriptor.ErrNoFace
)

// Kind names the enrollment states.
type Kind string

const (
	KindCollectingName Kind = "collecting_name"
	KindCollectingFace Kind = "collecting_face"
	KindCommitted      Kind = "committed"
)

// State is one of CollectingName, CollectingFace or Committed.
type State interface {
	Kind() Kind
	isState()
}

// CollectingName waits for a name. Name and Err hold the last rejected
// submission, if any.
type CollectingName struct {
	Name string
	Err  error
}

// CollectingFace holds an accepted name and waits for a face.
type CollectingFace struct {
	Name string
	// Err is the last face submission error, if any.
	Err error
}

// Committed is terminal: the identity was persisted.
type Committed struct {
	Identity identity.Identity
}

func (CollectingName) Kind() Kind { return KindCollectingName }
func (CollectingFace) Kind() Kind { return KindCollectingFace }
func (Committed) Kind() Kind      { return KindCommitted }

func (CollectingName) isState() {}
func (CollectingFace) isState() {}
func (Committed) isState()      {}

// Repository is the part of identity.Repository enrollment needs.
type Repository interface {
	Contains(name string) bool
	Get(name string) (identity.Identity, bool)
	Add(ctx context.Context, ident identity.Identity) error
	DescriptorSize() int
}

// Workflow is a single enrollment attempt. It is safe for concurrent use.
type Workflow struct {
	mu    sync.Mutex
	repo  Repository
	log   *logger.Logger
	state State
}

// New starts a workflow in CollectingName.
func New(repo Repository, log *logger.Logger) *Workflow {
	if log == nil {
		log = logger.Nop()
	}
	return &Workflow{
		repo:  repo,
		log:   log.With("component", "enrollment"),
		state: CollectingName{},
	}
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Kind returns the kind of the current state.
func (w *Workflow) Kind() Kind {
	return w.State().Kind()
}

func (w *Workflow) set(s State) {
	w.state = s
}

// SubmitName accepts name if it is non-empty and not enrolled yet. On failure the
// workflow stays in CollectingName and records the error.
func (w *Workflow) SubmitName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.state.(CollectingName); !ok {
		return fmt.Errorf("%w: submit name in %s", ErrInvalidTransition, w.state.Kind())
	}

	normalized := identity.NormalizeName(name)
	var err error
	switch {
	case normalized == "":
		err = ErrEmptyName
	case w.repo.Contains(normalized):
		err = fmt.Errorf("%w: %q", identity.ErrNameExists, normalized)
	}
	if err != nil {
		w.set(CollectingName{Name: name, Err: err})
		w.log.Debug("name rejected", "name", normalized, "error", err)
		return err
	}

	w.set(CollectingFace{Name: normalized})
	w.log.Debug("name accepted", "name", normalized)
	return nil
}

// SubmitFace commits the collected name with d.
//
// A nil descriptor or a storage failure keeps the workflow in CollectingFace so
// the capture can be retried. If the name was taken since SubmitName the
// workflow returns to CollectingName with the conflict recorded.
func (w *Workflow) SubmitFace(ctx context.Context, d descriptor.Descriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cf, ok := w.state.(CollectingFace)
	if !ok {
		return fmt.Errorf("%w: submit face in %s", ErrInvalidTransition, w.state.Kind())
	}

	if err := descriptor.Validate(d, w.repo.DescriptorSize()); err != nil {
		w.set(CollectingFace{Name: cf.Name, Err: err})
		return err
	}

	ident := identity.Identity{Name: cf.Name, Descriptor: descriptor.Clone(d)}
	err := w.repo.Add(ctx, ident)
	switch {
	case err == nil:
		// Re-read for the timestamp assigned by the repository.
		if stored, found := w.repo.Get(cf.Name); found {
			ident = stored
		}
		w.set(Committed{Identity: ident})
		w.log.Info("identity enrolled", "name", cf.Name)
		return nil
	case errors.Is(err, identity.ErrNameExists):
		w.set(CollectingName{Name: cf.Name, Err: err})
		w.log.Warn("name taken before commit", "name", cf.Name)
		return err
	default:
		w.set(CollectingFace{Name: cf.Name, Err: err})
		w.log.Error("enrollment commit failed", "name", cf.Name, "error", err)
		return err
	}
}

// Restart returns to CollectingName, discarding the collected name.
func (w *Workflow) Restart() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.state.(Committed); ok {
		return fmt.Errorf("%w: restart after commit", ErrInvalidTransition)
	}
	w.set(CollectingName{})
	return nil
}
