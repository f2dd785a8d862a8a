// Package orientation catalogs the anatomical axis labels and builds the
// signed permutation affines that convert coordinates between two named
// coordinate systems.
//
// A label has one character per spatial axis, naming the half-space that an
// increasing coordinate walks toward:
//
//	R(ight)    <-> L(eft)
//	A(nterior) <-> P(osterior)
//	S(uperior) <-> I(nferior)
//
// "RAS" is the NIfTI world convention, "LPS" the DICOM one.
package orientation

import (
	"errors"
	"fmt"

	"mritk/pkg/affine"
)

var (
	// ErrInvalidAxisLabel is returned for characters outside {R,L,A,P,S,I}.
	ErrInvalidAxisLabel = errors.New("invalid axis label")

	// ErrUnmatchedAxis is returned when an axis of the source label has no
	// counterpart in the target label.
	ErrUnmatchedAxis = errors.New("unmatched axis")
)

// Common coordinate systems.
const (
	RAS = "RAS"
	LPS = "LPS"
	LAS = "LAS"
)

// physicalAxis maps each character to the physical axis it lies on.
var physicalAxis = map[byte]int{
	'R': 0, 'L': 0,
	'A': 1, 'P': 1,
	'S': 2, 'I': 2,
}

var opposites = map[byte]byte{
	'R': 'L', 'L': 'R',
	'A': 'P', 'P': 'A',
	'S': 'I', 'I': 'S',
}

// LabelError describes a malformed or incompatible orientation label.
type LabelError struct {
	Label string // offending label
	Char  byte   // offending character, 0 if the label as a whole is at fault
	Other string // the label it was matched against, if any
	Err   error  // ErrInvalidAxisLabel or ErrUnmatchedAxis
}

func (e *LabelError) Error() string {
	switch {
	case e.Char != 0 && e.Other != "":
		return fmt.Sprintf("%v: no axis in %q corresponds to '%c' of %q", e.Err, e.Other, e.Char, e.Label)
	case e.Char != 0:
		return fmt.Sprintf("%v: '%c' in %q", e.Err, e.Char, e.Label)
	default:
		return fmt.Sprintf("%v: %q", e.Err, e.Label)
	}
}

func (e *LabelError) Unwrap() error { return e.Err }

// Opposite returns the opposite pole of an axis character, e.g. 'R' -> 'L'.
func Opposite(c byte) (byte, error) {
	o, ok := opposites[c]
	if !ok {
		return 0, &LabelError{Label: string(c), Char: c, Err: ErrInvalidAxisLabel}
	}
	return o, nil
}

// Flip returns the label with every axis pointing the other way, so
// Flip("RAS") == "LPI".
func Flip(label string) (string, error) {
	out := make([]byte, len(label))
	for i := 0; i < len(label); i++ {
		o, err := Opposite(label[i])
		if err != nil {
			return "", &LabelError{Label: label, Char: label[i], Err: ErrInvalidAxisLabel}
		}
		out[i] = o
	}
	return string(out), nil
}

// Validate checks that label names each of the three physical axes exactly
// once using valid characters.
func Validate(label string) error {
	if err := checkChars(label); err != nil {
		return err
	}
	if len(label) != 3 {
		return &LabelError{Label: label, Err: fmt.Errorf("%w: need 3 axes, got %d", ErrUnmatchedAxis, len(label))}
	}
	var seen [3]bool
	for i := 0; i < len(label); i++ {
		ax := physicalAxis[label[i]]
		if seen[ax] {
			return &LabelError{Label: label, Char: label[i], Err: fmt.Errorf("%w: axis repeated", ErrUnmatchedAxis)}
		}
		seen[ax] = true
	}
	return nil
}

func checkChars(label string) error {
	for i := 0; i < len(label); i++ {
		if _, ok := physicalAxis[label[i]]; !ok {
			return &LabelError{Label: label, Char: label[i], Err: ErrInvalidAxisLabel}
		}
	}
	return nil
}

// ChangeOfCoordinates returns the affine that maps coordinates expressed in
// the from system to the to system. Input axis i lands on the position of
// the same physical axis in to, negated if the two characters are opposite
// poles. The result is P @ F with F the diagonal sign matrix and P the
// axis permutation, so
//
//	ChangeOfCoordinates("RAS", "LIA") = [[-1 0 0 0] [0 0 -1 0] [0 1 0 0] [0 0 0 1]]
func ChangeOfCoordinates(from, to string) (affine.Affine, error) {
	if err := checkChars(from); err != nil {
		return affine.Affine{}, err
	}
	if err := checkChars(to); err != nil {
		return affine.Affine{}, err
	}
	if err := Validate(from); err != nil {
		return affine.Affine{}, err
	}
	if len(from) != len(to) {
		return affine.Affine{}, &LabelError{Label: from, Other: to,
			Err: fmt.Errorf("%w: labels %q and %q differ in length", ErrUnmatchedAxis, from, to)}
	}

	var order [3]int
	var sign [3]float64
	for i := 0; i < len(from); i++ {
		found := false
		for j := 0; j < len(to); j++ {
			if physicalAxis[from[i]] != physicalAxis[to[j]] {
				continue
			}
			order[i] = j
			sign[i] = 1
			if from[i] != to[j] {
				sign[i] = -1
			}
			found = true
			break
		}
		if !found {
			return affine.Affine{}, &LabelError{Label: from, Char: from[i], Other: to, Err: ErrUnmatchedAxis}
		}
	}
	if err := Validate(to); err != nil {
		return affine.Affine{}, err
	}

	// Both labels cover all three axes once, so order is a permutation.
	var f, p affine.Affine
	f[3][3], p[3][3] = 1, 1
	for i := 0; i < 3; i++ {
		f[i][i] = sign[i]
		p[order[i]][i] = 1
	}
	return p.Mul(f), nil
}
