// Package testutil provides test helpers for common testing patterns.
package testutil

import (
	"math"

	"github.com/kira-audio/kira/pkg/frame"
)

// TestingT is a minimal interface satisfied by *testing.T and *testing.B.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// AssertFloatEqual checks if two float64 values are equal within epsilon.
func AssertFloatEqual(t TestingT, got, want, epsilon float64, msgAndArgs ...interface{}) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: got %f, want %f (epsilon %f)", msgAndArgs[0], got, want, epsilon)
		} else {
			t.Errorf("got %f, want %f (epsilon %f)", got, want, epsilon)
		}
	}
}

// AssertIntEqual checks if two int values are equal.
func AssertIntEqual(t TestingT, got, want int, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: got %d, want %d", msgAndArgs[0], got, want)
		} else {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

// AssertStringEqual checks if two string values are equal.
func AssertStringEqual(t TestingT, got, want string, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: got %q, want %q", msgAndArgs[0], got, want)
		} else {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

// AssertTrue checks if a boolean is true.
func AssertTrue(t TestingT, condition bool, msgAndArgs ...interface{}) {
	t.Helper()
	if !condition {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: expected true, got false", msgAndArgs[0])
		} else {
			t.Error("expected true, got false")
		}
	}
}

// AssertFalse checks if a boolean is false.
func AssertFalse(t TestingT, condition bool, msgAndArgs ...interface{}) {
	t.Helper()
	if condition {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: expected false, got true", msgAndArgs[0])
		} else {
			t.Error("expected false, got true")
		}
	}
}

// AssertNil checks if a value is nil.
func AssertNil(t TestingT, val interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if val != nil {
		// Check for typed nil (e.g., (*int)(nil)); only *int, *string,
		// *bool and *float64 are recognised
		if isNil(val) {
			return
		}
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: expected nil, got %v", msgAndArgs[0], val)
		} else {
			t.Errorf("expected nil, got %v", val)
		}
	}
}

// isNil checks if a value is nil, including typed nil pointers
func isNil(val interface{}) bool {
	if val == nil {
		return true
	}
	// Use type assertion to check for common nil pointer types
	switch v := val.(type) {
	case *int:
		return v == nil
	case *string:
		return v == nil
	case *bool:
		return v == nil
	case *float64:
		return v == nil
	default:
		return false
	}
}

// AssertNotNil checks if a value is not nil.
func AssertNotNil(t TestingT, val interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if val == nil {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: expected non-nil value", msgAndArgs[0])
		} else {
			t.Error("expected non-nil value")
		}
	}
}

// AssertPanic checks that a function panics when called.
func AssertPanic(t TestingT, fn func(), msgAndArgs ...interface{}) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			if len(msgAndArgs) > 0 {
				t.Errorf("%v: expected panic but none occurred", msgAndArgs[0])
			} else {
				t.Error("expected panic but none occurred")
			}
		}
	}()
	fn()
}

// AssertNoPanic checks that a function does not panic when called.
func AssertNoPanic(t TestingT, fn func(), msgAndArgs ...interface{}) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			if len(msgAndArgs) > 0 {
				t.Errorf("%v: unexpected panic: %v", msgAndArgs[0], r)
			} else {
				t.Errorf("unexpected panic: %v", r)
			}
		}
	}()
	fn()
}

// AssertFrameEqual checks if two stereo frames are equal within
// epsilon on both channels.
func AssertFrameEqual(t TestingT, got, want frame.Frame, epsilon float64, msgAndArgs ...interface{}) {
	t.Helper()
	if math.Abs(float64(got.L-want.L)) > epsilon || math.Abs(float64(got.R-want.R)) > epsilon {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: got %+v, want %+v (epsilon %f)", msgAndArgs[0], got, want, epsilon)
		} else {
			t.Errorf("got %+v, want %+v (epsilon %f)", got, want, epsilon)
		}
	}
}

// RMS computes the root-mean-square amplitude of buf's mono-summed
// signal, for comparing two buffers' loudness without requiring
// sample-exact equality (useful once a tween or filter has smeared
// exact values across a block boundary).
func RMS(buf []frame.Frame) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sumSquares float64
	for _, f := range buf {
		m := f.Mono()
		sumSquares += m * m
	}
	return math.Sqrt(sumSquares / float64(len(buf)))
}

// AssertRMSEqual checks that two buffers' RMS amplitude matches within
// epsilon.
func AssertRMSEqual(t TestingT, got, want []frame.Frame, epsilon float64, msgAndArgs ...interface{}) {
	t.Helper()
	g, w := RMS(got), RMS(want)
	if math.Abs(g-w) > epsilon {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: RMS got %f, want %f (epsilon %f)", msgAndArgs[0], g, w, epsilon)
		} else {
			t.Errorf("RMS got %f, want %f (epsilon %f)", g, w, epsilon)
		}
	}
}
