package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-sim/internal/config"
	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/scorer"
)

func TestInitScorer(t *testing.T) {
	sc, err := initScorer(config.ScorerConfig{Kind: "none"})
	require.NoError(t, err)
	assert.Nil(t, sc)

	sc, err = initScorer(config.ScorerConfig{Kind: "logistic", ModelPath: "../models/risk_model.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &scorer.LogisticModel{}, sc)

	sc, err = initScorer(config.ScorerConfig{Kind: "http", URL: "http://localhost:9999/score", MaxAttempts: 2})
	require.NoError(t, err)
	assert.IsType(t, &scorer.HTTPScorer{}, sc)

	_, err = initScorer(config.ScorerConfig{Kind: "http"})
	require.Error(t, err)

	_, err = initScorer(config.ScorerConfig{Kind: "forest"})
	require.Error(t, err)
}

func TestFilterFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addFilterFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--loc", "Norte,Centro", "--year-from", "2019"}))

	assert.Equal(t, model.Filter{Locations: []string{"Norte", "Centro"}, YearFrom: 2019}, filterFromFlags(cmd))
}
