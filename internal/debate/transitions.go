package debate

import (
	"fmt"

	"github.com/o0llll0o/claudeExtensionCli-sub001/internal/errors"
)

// roundTransitions is the only order in which rounds follow each other.
var roundTransitions = map[RoundType]RoundType{
	RoundPropose:  RoundCritique,
	RoundCritique: RoundDefend,
	RoundDefend:   RoundVote,
	RoundVote:     RoundPropose,
}

// RoundTypes returns every round type in cycle order.
func RoundTypes() []RoundType {
	return []RoundType{RoundPropose, RoundCritique, RoundDefend, RoundVote}
}

// NextRound returns the round type that follows t.
func NextRound(t RoundType) (RoundType, error) {
	next, ok := roundTransitions[t]
	if !ok {
		return "", errors.NewDebateError(fmt.Sprintf("unknown round type %q", t), errors.ErrInvalidInput).
			WithRound(string(t))
	}
	return next, nil
}
