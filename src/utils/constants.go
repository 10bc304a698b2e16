package utils

// Lock key prefixes. Scheduled and dip executions share the rule key so a rule
// has one owner at a time; round-up accumulation serializes on its own key.
const (
	RuleLockPrefix    = "rule:"
	RoundUpLockPrefix = "roundup:"
)
