package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var ran []string
	var sg saga
	for _, label := range []string{"a", "b", "c"} {
		label := label
		sg.add(label,
			func(context.Context) error { ran = append(ran, label); return nil },
			func(context.Context) error { ran = append(ran, "undo-"+label); return nil },
		)
	}

	f := sg.run(context.Background())
	assert.Nil(t, f)
	assert.Equal(t, []string{"a", "b", "c"}, ran, "forward actions run in order, no compensation")
}

func TestSaga_FailureCompensatesInReverseOrder(t *testing.T) {
	// GIVEN: Steps a, b succeed and c fails
	// WHEN: The saga runs
	// THEN: b is undone before a, and the failure names c as the cause

	boom := errors.New("boom")
	var ran []string
	var sg saga

	step := func(label string, fail bool) {
		sg.add(label,
			func(context.Context) error {
				if fail {
					return boom
				}
				ran = append(ran, label)
				return nil
			},
			func(context.Context) error { ran = append(ran, "undo-"+label); return nil },
		)
	}
	step("a", false)
	step("b", false)
	step("c", true)

	f := sg.run(context.Background())
	require.NotNil(t, f)
	assert.Equal(t, "c", f.failedLabel)
	assert.ErrorIs(t, f.cause, boom)
	assert.Equal(t, []string{"a", "b"}, f.completed)
	assert.Equal(t, []string{"b", "a"}, f.compensated)
	assert.True(t, f.fullyCompensated())
	assert.Equal(t, []string{"a", "b", "undo-b", "undo-a"}, ran)
}

func TestSaga_CompensationFailureIsTracked(t *testing.T) {
	boom := errors.New("forward failed")
	undoBoom := errors.New("undo failed")

	var sg saga
	sg.add("a",
		func(context.Context) error { return nil },
		func(context.Context) error { return undoBoom },
	)
	sg.add("b",
		func(context.Context) error { return boom },
		nil,
	)

	f := sg.run(context.Background())
	require.NotNil(t, f)
	assert.False(t, f.fullyCompensated())
	assert.Equal(t, []string{"a"}, f.uncompensated)
	require.Len(t, f.compErrs, 1)
	assert.ErrorIs(t, f.compErrs[0], undoBoom)
}

func TestSaga_NilCompensationCountsAsCompensated(t *testing.T) {
	// A step with nothing to undo must not block fullyCompensated.
	var sg saga
	sg.add("idempotent", func(context.Context) error { return nil }, nil)
	sg.add("failing", func(context.Context) error { return errors.New("nope") }, nil)

	f := sg.run(context.Background())
	require.NotNil(t, f)
	assert.True(t, f.fullyCompensated())
	assert.Equal(t, []string{"idempotent"}, f.compensated)
}
