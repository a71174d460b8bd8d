package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/genforge/pkg/spec"
)

// fakeImplementer returns a scripted sequence of (files, changedCount)
// pairs, one per call, so tests can script a healing trajectory or a
// non-progress stall.
type fakeImplementer struct {
	calls   int
	results []struct {
		files   map[string]string
		applied int
	}
}

func (f *fakeImplementer) Implement(ctx context.Context, s spec.Spec, files map[string]string, requests []PatchRequest) (map[string]string, int, error) {
	r := f.results[f.calls]
	f.calls++
	return r.files, r.applied, nil
}

type fakeReviewer struct {
	verdicts []ReviewVerdict
	calls    int
}

func (f *fakeReviewer) Review(ctx context.Context, s spec.Spec, files map[string]string) (ReviewVerdict, error) {
	v := f.verdicts[f.calls]
	if f.calls < len(f.verdicts)-1 {
		f.calls++
	}
	return v, nil
}

func TestRunReviewRounds_TrustScoreNeverDropsAcrossRounds(t *testing.T) {
	loop := &Loop{}
	reviewer := &fakeReviewer{verdicts: []ReviewVerdict{
		{Approved: false, Trust: 5, Requests: []PatchRequest{{FilePath: "app/main.py", Reason: "reviewer flagged"}}},
		{Approved: true, Trust: 4, Requests: nil},
	}}
	implementer := &fakeImplementer{results: []struct {
		files   map[string]string
		applied int
	}{
		{files: map[string]string{"app/main.py": "v2"}, applied: 1},
	}}
	loop.Reviewer = reviewer
	loop.Implementer = implementer

	bestTrust := 0
	verdict, applied, _, err := loop.runReviewRounds(context.Background(), spec.Spec{}, map[string]string{"app/main.py": "v1"}, &bestTrust)

	require.NoError(t, err)
	assert.Equal(t, 5, verdict.Trust, "second round's reported score must be floored at the first round's score")
	assert.Equal(t, 1, applied)
}

func TestRunReviewRounds_StopsOnApprovalAboveTrustFloor(t *testing.T) {
	loop := &Loop{Reviewer: &fakeReviewer{verdicts: []ReviewVerdict{
		{Approved: true, Trust: 8, Requests: nil},
	}}}

	bestTrust := 0
	verdict, applied, files, err := loop.runReviewRounds(context.Background(), spec.Spec{}, map[string]string{"app/main.py": "v1"}, &bestTrust)

	require.NoError(t, err)
	assert.True(t, verdict.Approved)
	assert.Zero(t, applied)
	assert.Equal(t, map[string]string{"app/main.py": "v1"}, files)
}

