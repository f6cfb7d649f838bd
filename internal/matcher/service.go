/*
Package matcher is the facade between the HTTP surface and the vector
collection. It owns the bootstrap of the collection, turns registered tools
into tagged fragments, and resolves a task description to the name of the
tool owning the nearest fragment.
*/
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/registry"
	"github.com/khanglvm/tooldb/internal/storage"
	"github.com/khanglvm/tooldb/internal/vectorstore"
)

// metadataName is the metadata key holding a fragment's owner.
const metadataName = "name"

var (
	// ErrInvalidTool is returned by Register for malformed tools.
	ErrInvalidTool = registry.ErrInvalidTool

	// ErrNoMatch is returned by Match when the sentinel is the nearest fragment.
	ErrNoMatch = errors.New("no matching tool")

	// ErrStore wraps failures of the vector collection.
	ErrStore = errors.New("vector store failure")
)

// History receives registrations and match outcomes. Failures are logged and
// never fail the request.
type History interface {
	RecordRegistration(reg storage.Registration) error
	RecordMatch(match storage.MatchRecord) error
}

// Observer is notified after each operation, e.g. to update metrics.
type Observer interface {
	Registered(ctx context.Context, tool string, fragments int)
	Matched(ctx context.Context, result string)
}

// Match outcomes reported to an Observer.
const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Service registers tools into a collection and matches tasks against it.
// It is safe for concurrent use: registrations are exclusive, matches may
// run in parallel with each other.
type Service struct {
	coll     vectorstore.Collection
	logger   *zap.Logger
	history  History
	observer Observer
	newID    func() string
	now      func() time.Time
	mu       sync.RWMutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHistory records registrations and matches into h.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithObserver reports operations to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithIDGenerator replaces the fragment ID generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// New bootstraps coll with the sentinel fragment and returns a Service
// ready to serve traffic. coll must be empty.
func New(ctx context.Context, coll vectorstore.Collection, opts ...Option) (*Service, error) {
	s := &Service{
		coll:   coll,
		logger: zap.NewNop(),
		newID:  newFragmentID,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	sentinel := registry.Sentinel()
	err := coll.Add(ctx,
		[]string{sentinel.Text},
		[]vectorstore.Metadata{{metadataName: sentinel.OwnerName}},
		[]string{sentinel.ID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: seed sentinel: %v", ErrStore, err)
	}

	s.logger.Info("collection initialised",
		zap.String("collection", coll.Name()),
	)
	return s, nil
}

// newFragmentID returns a time-based (version 1) UUID, falling back to a
// random one if the clock sequence cannot be read.
func newFragmentID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Register decomposes tool into fragments tagged with its name and inserts
// them in one batch. It returns the number of fragments inserted. Registering
// an existing name adds further fragments; nothing is merged.
func (s *Service) Register(ctx context.Context, tool registry.Tool) (int, error) {
	if err := registry.Validate(tool); err != nil {
		return 0, err
	}

	fragments := registry.Fragments(tool, s.newID)
	docs := make([]string, len(fragments))
	metas := make([]vectorstore.Metadata, len(fragments))
	ids := make([]string, len(fragments))
	for i, f := range fragments {
		docs[i] = f.Text
		metas[i] = vectorstore.Metadata{metadataName: f.OwnerName}
		ids[i] = f.ID
	}

	s.mu.Lock()
	err := s.coll.Add(ctx, docs, metas, ids)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to register tool", zap.String("tool", tool.Name), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.logger.Debug("registered tool",
		zap.String("tool", tool.Name),
		zap.Int("fragments", len(fragments)),
	)

	if s.history != nil {
		if err := s.history.RecordRegistration(storage.Registration{
			ToolName:      tool.Name,
			FragmentCount: len(fragments),
			Timestamp:     s.now(),
		}); err != nil {
			s.logger.Warn("failed to record registration", zap.Error(err))
		}
	}
	if s.observer != nil {
		s.observer.Registered(ctx, tool.Name, len(fragments))
	}

	return len(fragments), nil
}

// Match returns the name of the tool owning the fragment nearest to task.
// It returns ErrNoMatch when the nearest fragment is the sentinel.
func (s *Service) Match(ctx context.Context, task string) (string, error) {
	name, err := s.match(ctx, task)

	result := ResultFound
	switch {
	case errors.Is(err, ErrNoMatch):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}

	if s.observer != nil {
		s.observer.Matched(ctx, result)
	}
	if s.history != nil && result != ResultError {
		if herr := s.history.RecordMatch(storage.MatchRecord{
			SearchID:    uuid.NewString(),
			QueryHash:   storage.HashQuery(task),
			MatchedName: name,
			Found:       result == ResultFound,
			Timestamp:   s.now(),
		}); herr != nil {
			s.logger.Warn("failed to record match", zap.Error(herr))
		}
	}

	return name, err
}

func (s *Service) match(ctx context.Context, task string) (string, error) {
	s.mu.RLock()
	results, err := s.coll.Query(ctx, task, 1)
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error("failed to query collection", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	if len(results) == 0 {
		// The sentinel guarantees a result; an empty answer means the store lost it.
		s.logger.Warn("collection returned no result")
		return "", ErrNoMatch
	}

	name := results[0].Metadata[metadataName]
	s.logger.Debug("matched task",
		zap.String("name", name),
		zap.String("fragment", results[0].ID),
		zap.Float64("score", results[0].Score),
	)

	if name == registry.SentinelName {
		return "", ErrNoMatch
	}
	return name, nil
}

// Size returns the number of fragments in the collection, sentinel included.
func (s *Service) Size(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.coll.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return n, nil
}

// CollectionName returns the name of the underlying collection.
func (s *Service) CollectionName() string {
	return s.coll.Name()
}
