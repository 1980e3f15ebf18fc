package models

import (
	"time"
)

// Difficulty grades a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// RewardScope says who a reward affects.
type RewardScope string

const (
	RewardScopeSelf  RewardScope = "self"
	RewardScopeOther RewardScope = "other"
)

// RewardKind is the effect applied when a reward resolves.
type RewardKind string

const (
	RewardKindAddTime    RewardKind = "add_time"
	RewardKindRemoveTime RewardKind = "remove_time"
	RewardKindFreezeTime RewardKind = "freeze_time"
	RewardKindFlashbang  RewardKind = "flashbang"
)

// Targeting picks the victims of an other-scoped reward.
type Targeting string

const (
	TargetingRandom Targeting = "random"
	TargetingAll    Targeting = "all"
	TargetingChoose Targeting = "choose"
)

// ChallengeKind is the constraint a card places on its solution.
type ChallengeKind string

const (
	ChallengeKindTimeLimit  ChallengeKind = "time_limit"
	ChallengeKindLineLimit  ChallengeKind = "line_limit"
	ChallengeKindComplexity ChallengeKind = "complexity"
)

// TestCase is one judge input with its expected output.
type TestCase struct {
	Input          string `json:"input" yaml:"input"`
	ExpectedOutput string `json:"expectedOutput" yaml:"expectedOutput"`
}

// Problem is a coding task from the catalog.
type Problem struct {
	ID                string     `json:"id" yaml:"id"`
	Title             string     `json:"title" yaml:"title"`
	Description       string     `json:"description" yaml:"description"`
	Difficulty        Difficulty `json:"difficulty" yaml:"difficulty"`
	FunctionSignature string     `json:"functionSignature" yaml:"functionSignature"`
	TestCases         []TestCase `json:"testCases" yaml:"testCases"`
}

// Reward is granted when a card is solved. Magnitude is in seconds.
type Reward struct {
	Scope     RewardScope `json:"scope" yaml:"scope"`
	Kind      RewardKind  `json:"kind" yaml:"kind"`
	Magnitude int         `json:"magnitude" yaml:"magnitude"`
	Targeting Targeting   `json:"targeting,omitempty" yaml:"targeting,omitempty"`
}

// Challenge constrains how a card may be solved.
type Challenge struct {
	Kind       ChallengeKind `json:"kind" yaml:"kind"`
	Magnitude  int           `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
	Constraint string        `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Card is one dealt instance of a problem. Only FirstSelectedAt changes after
// the card is dealt, and only once.
type Card struct {
	ID              string     `json:"id"`
	Problem         Problem    `json:"problem"`
	Reward          *Reward    `json:"reward,omitempty"`
	Challenge       *Challenge `json:"challenge,omitempty"`
	DealtAt         time.Time  `json:"dealtAt"`
	FirstSelectedAt *time.Time `json:"firstSelectedAt,omitempty"`
}

// TestResult is the judge's verdict for one test case.
type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// JudgeResult is the outcome of evaluating a submission.
type JudgeResult struct {
	Passed      bool         `json:"passed"`
	Diagnostics string       `json:"diagnostics,omitempty"`
	TestResults []TestResult `json:"testResults,omitempty"`
}

// ValidRewardKind reports whether k is a known reward kind.
func ValidRewardKind(k RewardKind) bool {
	switch k {
	case RewardKindAddTime, RewardKindRemoveTime, RewardKindFreezeTime, RewardKindFlashbang:
		return true
	}
	return false
}
