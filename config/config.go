// Package config loads the per-agent key:value configuration file with
// godotenv.Parse. A malformed value or unknown key never fails the load:
// it is logged and the default for that key is kept.
package config

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Agent holds the tunables for the agent kernel.
type Agent struct {
	NumHyperGames         int
	NumHyperBranches      int
	MaxNumProbes          int
	NumOPProbes           int
	BacktrackingDepth     int
	LikelihoodPowerFactor float64
	ShouldBranch          bool
	InvPlaytimeFactor     int
}

// Defaults returns the out-of-the-box configuration.
func Defaults() Agent {
	return Agent{
		NumHyperGames:         16,
		NumHyperBranches:      16,
		MaxNumProbes:          16,
		NumOPProbes:           8,
		BacktrackingDepth:     1,
		LikelihoodPowerFactor: 1.0,
		ShouldBranch:          false,
		InvPlaytimeFactor:     10,
	}
}

// Load parses r as a key:value file and overlays recognized keys onto
// Defaults(). Each line's first colon is rewritten to an equals sign before
// handing off to godotenv.Parse, so the library still does the real work
// (comments, quoting, blank-line skipping) for a colon-delimited format.
// log defaults to zerolog.Nop() if the zero value.
func Load(r io.Reader, log zerolog.Logger) Agent {
	cfg := Defaults()

	values, err := godotenv.Parse(colonsToEquals(r))
	if err != nil {
		log.Warn().Err(err).Msg("config: malformed key:value file, using defaults")
		return cfg
	}

	for key, raw := range values {
		if !applyKey(&cfg, key, raw) {
			log.Warn().Str("key", key).Str("value", raw).Msg("config: unknown or malformed key, keeping default")
		}
	}
	return cfg
}

// colonsToEquals rewrites each line's first ':' to '=' so a colon-delimited
// key:value file parses the same way a KEY=VALUE .env file would. Lines
// already blank or comment-prefixed are passed through untouched; godotenv
// handles those cases itself.
func colonsToEquals(r io.Reader) io.Reader {
	var out strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.Contains(line, "=") {
			out.WriteString(line)
		} else if idx := strings.Index(line, ":"); idx >= 0 {
			out.WriteString(line[:idx] + "=" + line[idx+1:])
		} else {
			out.WriteString(line)
		}
		out.WriteByte('\n')
	}
	return strings.NewReader(out.String())
}

// applyKey sets the field for key from raw, reporting whether it succeeded.
func applyKey(cfg *Agent, key, raw string) bool {
	switch key {
	case "numHyperGames":
		return setInt(&cfg.NumHyperGames, raw)
	case "numHyperBranches":
		return setInt(&cfg.NumHyperBranches, raw)
	case "maxNumProbes":
		return setInt(&cfg.MaxNumProbes, raw)
	case "numOPProbes":
		return setInt(&cfg.NumOPProbes, raw)
	case "backtrackingDepth":
		return setInt(&cfg.BacktrackingDepth, raw)
	case "likelihoodPowerFactor":
		return setFloat(&cfg.LikelihoodPowerFactor, raw)
	case "shouldBranch":
		return setBool(&cfg.ShouldBranch, raw)
	case "invPlaytimeFactor":
		return setInt(&cfg.InvPlaytimeFactor, raw)
	default:
		return false
	}
}

func setInt(dst *int, raw string) bool {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func setFloat(dst *float64, raw string) bool {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	*dst = v
	return true
}

func setBool(dst *bool, raw string) bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	*dst = v
	return true
}
