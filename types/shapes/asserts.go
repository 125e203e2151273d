package shapes

import (
	"fmt"

	"github.com/pkg/errors"
)

// UncheckedAxis can be used in CheckDims/AssertDims for an axis whose dimension doesn't matter.
const UncheckedAxis = int(-1)

// HasShape is implemented by anything with an associated Shape.
type HasShape interface {
	Shape() Shape
}

// CheckDims checks that the shape has the given dimensions and rank. A value of -1 means
// that axis is not checked.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape (%s) has incompatible rank %d (wanted %d)", s, s.Rank(), len(dimensions))
	}
	for ii, wantDim := range dimensions {
		if wantDim != UncheckedAxis && s.Dimensions[ii] != wantDim {
			return errors.Errorf("shape (%s) axis %d has dimension %d, wanted %d (shape wanted=%v)", s, ii, s.Dimensions[ii], wantDim, dimensions)
		}
	}
	return nil
}

// Check checks that the shape has the given dtype, dimensions and rank.
func (s Shape) Check(dtype DType, dimensions ...int) error {
	if dtype != s.DType {
		return errors.Errorf("shape (%s) has incompatible dtype %s (wanted %s)", s, s.DType, dtype)
	}
	return s.CheckDims(dimensions...)
}

// AssertDims panics if the shape doesn't have the given dimensions and rank.
func (s Shape) AssertDims(dimensions ...int) {
	if err := s.CheckDims(dimensions...); err != nil {
		panic(fmt.Sprintf("shapes.AssertDims(%v): %+v", dimensions, err))
	}
}

// Assert panics if the shape doesn't have the given dtype, dimensions and rank.
func (s Shape) Assert(dtype DType, dimensions ...int) {
	if err := s.Check(dtype, dimensions...); err != nil {
		panic(fmt.Sprintf("shapes.Assert(%s, %v): %+v", dtype, dimensions, err))
	}
}

// CheckRank checks that the shape has the given rank.
func (s Shape) CheckRank(rank int) error {
	if s.Rank() != rank {
		return errors.Errorf("shape (%s) has incompatible rank %d -- wanted %d", s, s.Rank(), rank)
	}
	return nil
}

// AssertRank panics if the shape doesn't have the given rank.
func (s Shape) AssertRank(rank int) {
	if err := s.CheckRank(rank); err != nil {
		panic(fmt.Sprintf("AssertRank(%d): %+v", rank, err))
	}
}

// CheckScalar checks that the shape is a scalar.
func (s Shape) CheckScalar() error {
	if !s.IsScalar() {
		return errors.Errorf("shape (%s) is not a scalar", s)
	}
	return nil
}

// AssertScalar panics if the shape is not a scalar.
func (s Shape) AssertScalar() {
	if err := s.CheckScalar(); err != nil {
		panic(fmt.Sprintf("AssertScalar(): %+v", err))
	}
}
