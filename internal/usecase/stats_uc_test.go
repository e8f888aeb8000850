package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dream2design/internal/domain/model"
	"dream2design/internal/infra/db/memory"
)

func TestJobStats_Report(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewJobRepo()
	done := model.NewJob("a")
	done.StartProcessing("")
	done.Complete(&model.Envelope{}, "")
	require.NoError(t, repo.Save(ctx, done))
	require.NoError(t, repo.Save(ctx, model.NewJob("b")))

	n, err := NewJobStats(repo).Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
