package config

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysRecognizedKeysOntoDefaults(t *testing.T) {
	r := strings.NewReader("numHyperGames:32\nbacktrackingDepth:3\nshouldBranch:true\n")
	cfg := Load(r, zerolog.Nop())

	require.Equal(t, 32, cfg.NumHyperGames)
	require.Equal(t, 3, cfg.BacktrackingDepth)
	require.True(t, cfg.ShouldBranch)
	// Untouched keys keep their defaults.
	require.Equal(t, 16, cfg.NumHyperBranches)
	require.Equal(t, 1.0, cfg.LikelihoodPowerFactor)
}

func TestLoadFallsBackToDefaultOnMalformedValue(t *testing.T) {
	r := strings.NewReader("numHyperGames:not-a-number\n")
	cfg := Load(r, zerolog.Nop())

	require.Equal(t, Defaults().NumHyperGames, cfg.NumHyperGames)
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	r := strings.NewReader("totallyUnknownKey:42\n")
	cfg := Load(r, zerolog.Nop())

	require.Equal(t, Defaults(), cfg)
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	require.Equal(t, Agent{
		NumHyperGames:         16,
		NumHyperBranches:      16,
		MaxNumProbes:          16,
		NumOPProbes:           8,
		BacktrackingDepth:     1,
		LikelihoodPowerFactor: 1.0,
		ShouldBranch:          false,
		InvPlaytimeFactor:     10,
	}, Defaults())
}
