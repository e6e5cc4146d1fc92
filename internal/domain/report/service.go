package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/platform/blobstore"
	"github.com/ehr/ehr-agent/pkg/pagination"
)

// Service saves reports to a blob store and, when configured, records their
// metadata in an Index.
type Service struct {
	store  blobstore.Store
	index  Index
	logger zerolog.Logger
	now    func() time.Time
}

// NewService returns a Service. index may be nil.
func NewService(store blobstore.Store, index Index, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		index:  index,
		logger: logger.With().Str("component", "report").Logger(),
		now:    time.Now,
	}
}

// Save writes the content unchanged under a name derived from CapturedAt
// (now when zero). Two saves within the same second share a name and the
// later one wins.
func (s *Service) Save(ctx context.Context, in SaveInput) (*Report, error) {
	if in.Content == "" {
		return nil, ErrEmptyContent
	}
	captured := in.CapturedAt
	if captured.IsZero() {
		captured = s.now()
	}

	data := []byte(in.Content)
	obj, err := s.store.Put(ctx, FileName(captured), data, contentType)
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	sum := sha256.Sum256(data)
	r := &Report{
		ID:         uuid.New(),
		FileName:   obj.Key,
		Location:   obj.Location,
		Size:       obj.Size,
		SHA256:     hex.EncodeToString(sum[:]),
		SessionID:  in.SessionID,
		CapturedAt: captured,
		CreatedAt:  s.now().UTC(),
	}

	if s.index != nil {
		if err := s.index.Create(ctx, r); err != nil {
			s.logger.Warn().Err(err).Str("file", r.FileName).Msg("report saved but not indexed")
		}
	}

	s.logger.Info().
		Str("file", r.FileName).
		Int64("size", r.Size).
		Msg("report saved")
	return r, nil
}

// Open returns the stored content of a report.
func (s *Service) Open(ctx context.Context, name string) (string, *Report, error) {
	data, obj, err := s.store.Get(ctx, name)
	if errors.Is(err, blobstore.ErrBlobNotFound) || errors.Is(err, blobstore.ErrInvalidKey) || errors.Is(err, blobstore.ErrMissingKey) {
		return "", nil, ErrReportNotFound
	}
	if err != nil {
		return "", nil, err
	}
	return string(data), fromObject(obj), nil
}

// List returns saved reports, newest first. The Index is used when present.
func (s *Service) List(ctx context.Context, p pagination.Params) ([]*Report, int, error) {
	if s.index != nil {
		items, total, err := s.index.List(ctx, p.Limit, p.Offset)
		if err != nil {
			return nil, 0, err
		}
		if items == nil {
			items = []*Report{}
		}
		return items, total, nil
	}

	objs, err := s.store.List(ctx, FilePrefix)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	items := make([]*Report, 0, len(objs))
	for _, o := range objs {
		if _, ok := ParseFileName(o.Key); !ok {
			continue
		}
		items = append(items, fromObject(o))
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].FileName > items[j].FileName })

	start, end := p.Bounds(len(items))
	return items[start:end], len(items), nil
}

func fromObject(o *blobstore.Object) *Report {
	r := &Report{
		FileName:  o.Key,
		Location:  o.Location,
		Size:      o.Size,
		CreatedAt: o.ModifiedAt,
	}
	if at, ok := ParseFileName(o.Key); ok {
		r.CapturedAt = at
	}
	return r
}
