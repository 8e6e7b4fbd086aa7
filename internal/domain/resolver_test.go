package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	assert.Equal(t, ResolutionFail, p.Resolve(StateInaccessible))
	assert.Equal(t, ResolutionFail, p.Resolve(StateStopped))
	assert.Equal(t, ResolutionFail, p.Resolve(StateFailed))
	assert.Equal(t, ResolutionContinue, p.Resolve(StateDone))
	assert.Equal(t, ResolutionContinue, p.Resolve(StateSuspended))

	require.NoError(t, p.Validate())
}

func TestParseResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    Resolution
		wantErr string
	}{
		{name: "fail", raw: "fail", want: ResolutionFail},
		{name: "continue", raw: "continue", want: ResolutionContinue},
		{name: "ignore", raw: "ignore", want: ResolutionIgnore},
		{name: "uppercase", raw: "FAIL", want: ResolutionFail},
		{name: "padded", raw: "  Continue ", want: ResolutionContinue},
		{name: "unknown verb", raw: "retry", wantErr: `unknown resolution "retry"`},
		{name: "empty", raw: "", wantErr: "unknown resolution"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseResolution(tc.raw)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPolicyFromStrings(t *testing.T) {
	t.Parallel()

	p, err := PolicyFromStrings("ignore", "continue", "IGNORE", "continue", "fail")
	require.NoError(t, err)
	assert.Equal(t, ResolverPolicy{
		Inaccessible: ResolutionIgnore,
		Stopped:      ResolutionContinue,
		Failed:       ResolutionIgnore,
		Done:         ResolutionContinue,
		Suspended:    ResolutionFail,
	}, p)

	_, err = PolicyFromStrings("fail", "fail", "abort", "continue", "continue")
	assert.ErrorContains(t, err, "failed-resolver")

	_, err = PolicyFromStrings("fail", "fail", "fail", "continue", "later")
	assert.ErrorContains(t, err, "suspended-resolver")
}

func TestResolveCoversEveryTerminalState(t *testing.T) {
	t.Parallel()

	p := ResolverPolicy{
		Inaccessible: ResolutionIgnore,
		Stopped:      ResolutionIgnore,
		Failed:       ResolutionIgnore,
		Done:         ResolutionFail,
		Suspended:    ResolutionIgnore,
	}

	for _, state := range []SessionState{StateInaccessible, StateStopped, StateFailed, StateDone, StateSuspended} {
		require.True(t, state.Terminal())
		switch state {
		case StateDone:
			assert.Equal(t, ResolutionFail, p.Resolve(state))
		default:
			assert.Equal(t, ResolutionIgnore, p.Resolve(state))
		}
	}

	// Non-terminal states never reach the resolver in the wait loop, but
	// resolving one must not panic or fail the wait.
	assert.Equal(t, ResolutionIgnore, p.Resolve(StateRunning))
	assert.Equal(t, ResolutionIgnore, p.Resolve(SessionState("anything")))
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	var zero ResolverPolicy
	assert.ErrorContains(t, zero.Validate(), "inaccessible")

	p := DefaultPolicy()
	p.Done = Resolution("skip")
	assert.ErrorContains(t, p.Validate(), `done: unknown resolution "skip"`)
}
