package artifact

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// MaxStage is the largest stage number a two-digit prefix can carry.
const MaxStage = 99

var (
	suffixPattern   = regexp.MustCompile(`^[a-z0-9_]+$`)
	stageKeyPattern = regexp.MustCompile(`^([0-9]{2})_([a-z0-9_]+)$`)
)

// StageKey returns the dump key for a pipeline stage, e.g. StageKey(10,
// "conv1_out") is "10_conv1_out". The prefix fixes the order of stages
// independently of how the suffixes sort.
func StageKey(stage int, suffix string) (string, error) {
	if stage < 0 || stage > MaxStage {
		return "", fmt.Errorf("stage %d out of range [0, %d]", stage, MaxStage)
	}
	if !suffixPattern.MatchString(suffix) {
		return "", fmt.Errorf("stage suffix %q must match [a-z0-9_]+", suffix)
	}
	return fmt.Sprintf("%02d_%s", stage, suffix), nil
}

// MustStageKey is like StageKey but panics on error.
func MustStageKey(stage int, suffix string) string {
	key, err := StageKey(stage, suffix)
	if err != nil {
		panic(err)
	}
	return key
}

// ParseStageKey splits a staged key into its stage number and suffix.
func ParseStageKey(key string) (int, string, error) {
	m := stageKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, "", fmt.Errorf("key %q is not a staged key (NN_suffix)", key)
	}
	stage, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", err
	}
	return stage, m[2], nil
}

// SortByStage orders keys by stage number, then suffix. Keys without a stage
// prefix sort after all staged keys, lexically.
func SortByStage(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		si, sufI, errI := ParseStageKey(keys[i])
		sj, sufJ, errJ := ParseStageKey(keys[j])
		switch {
		case errI != nil && errJ != nil:
			return keys[i] < keys[j]
		case errI != nil:
			return false
		case errJ != nil:
			return true
		case si != sj:
			return si < sj
		default:
			return sufI < sufJ
		}
	})
}
