package jindisk

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RangeQueryTest struct {
	suite.Suite
}

func TestRangeQuery(t *testing.T) {
	suite.Run(t, new(RangeQueryTest))
}

func (s *RangeQueryTest) TestBuildFromComputesCoveredBlocks() {
	ctx := NewRangeQueryCtx(4096, 4*4096, 4096)
	s.Equal(4, ctx.NumQueriedBlocks())
}

func (s *RangeQueryTest) TestCompleteTracksProgress() {
	ctx := NewRangeQueryCtx(4096, 4*4096, 4096)
	ctx.Complete(LBA(2))
	ctx.Complete(LBA(4))
	s.False(ctx.IsCompleted())

	uncompleted := ctx.CollectUncompleted()
	s.Len(uncompleted, 2)

	ctx.Complete(LBA(1))
	ctx.Complete(LBA(3))
	s.True(ctx.IsCompleted())
}
