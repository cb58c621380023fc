package reference

import (
	"context"
	"fmt"
	"strings"
)

// Procedure is one SIGTAP procedure table entry.
type Procedure struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Complexity  string `json:"complexity,omitempty"`
}

// CID is one CID-10 diagnosis table entry.
type CID struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Lookup resolves procedure and diagnosis codes against the hospital's
// reference tables. Implementations must tolerate unknown codes by
// returning ErrCodeNotFound rather than failing the submission.
type Lookup interface {
	FindProcedure(ctx context.Context, code string) (*Procedure, error)
	FindCID(ctx context.Context, code string) (*CID, error)
	Health(ctx context.Context) error
}

// ErrCodeNotFound is returned when a code has no reference entry.
var ErrCodeNotFound = fmt.Errorf("reference code not found")

// StaticLookup serves lookups from in-memory tables. Used in development
// and tests when no SIGTAP database is configured.
type StaticLookup struct {
	procedures map[string]Procedure
	cids       map[string]CID
}

// NewStaticLookup creates a lookup backed by the given tables.
func NewStaticLookup(procedures []Procedure, cids []CID) *StaticLookup {
	s := &StaticLookup{
		procedures: make(map[string]Procedure, len(procedures)),
		cids:       make(map[string]CID, len(cids)),
	}
	for _, p := range procedures {
		s.procedures[normalizeCode(p.Code)] = p
	}
	for _, c := range cids {
		s.cids[normalizeCode(c.Code)] = c
	}
	return s
}

func (s *StaticLookup) FindProcedure(ctx context.Context, code string) (*Procedure, error) {
	p, ok := s.procedures[normalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: procedure %s", ErrCodeNotFound, code)
	}
	return &p, nil
}

func (s *StaticLookup) FindCID(ctx context.Context, code string) (*CID, error) {
	c, ok := s.cids[normalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: cid %s", ErrCodeNotFound, code)
	}
	return &c, nil
}

func (s *StaticLookup) Health(ctx context.Context) error {
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ Lookup = (*StaticLookup)(nil)
