package locomo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
)

// ErrCorpusNotFound is returned by LoadCorpus when the corpus file does not exist.
var ErrCorpusNotFound = errors.New("corpus not found")

// ErrMalformedTurn is returned when a turn lacks its speaker or text.
var ErrMalformedTurn = errors.New("malformed turn")

// sessionKeyRe matches turn-bearing session keys only; "session_<N>_date_time" is excluded.
var sessionKeyRe = regexp.MustCompile(`^session_(\d+)$`)

// rawSample mirrors one element of the LoCoMo JSON array. QA and summary fields are ignored.
type rawSample struct {
	SampleID     string                     `json:"sample_id"`
	Conversation map[string]json.RawMessage `json:"conversation"`
}

// rawTurn uses pointers so an absent field can be told apart from an empty one.
type rawTurn struct {
	Speaker *string `json:"speaker"`
	Text    *string `json:"text"`
}

// LoadCorpus reads and validates a LoCoMo corpus file.
func LoadCorpus(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a LoCoMo JSON array. Every session is decoded and its turns validated,
// so a malformed corpus fails here rather than halfway through an ingestion run.
func ParseCorpus(data []byte) ([]Sample, error) {
	var raw []rawSample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}

	samples := make([]Sample, 0, len(raw))
	for i, rs := range raw {
		if rs.SampleID == "" {
			return nil, fmt.Errorf("sample %d: missing sample_id", i)
		}
		sessions, err := decodeSessions(rs.Conversation)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", rs.SampleID, err)
		}
		samples = append(samples, Sample{SampleID: rs.SampleID, Sessions: sessions})
	}
	return samples, nil
}

// SessionKeys returns the turn-bearing session keys of a conversation in ascending numeric
// order, so session_10 follows session_2. Keys with the same number ("session_1",
// "session_01") are ordered by the key itself.
func SessionKeys[V any](conversation map[string]V) []string {
	keys := make([]string, 0, len(conversation))
	for k := range conversation {
		if _, _, ok := sessionNumber(k); ok {
			keys = append(keys, k)
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		_, a, _ := sessionNumber(keys[i])
		_, b, _ := sessionNumber(keys[j])
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// sessionNumber splits a session key into its number as written and its numeric value.
func sessionNumber(key string) (string, int, bool) {
	m := sessionKeyRe.FindStringSubmatch(key)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

func decodeSessions(conv map[string]json.RawMessage) ([]Session, error) {
	keys := SessionKeys(conv)
	sessions := make([]Session, 0, len(keys))

	for _, key := range keys {
		num, idx, _ := sessionNumber(key)

		turns, err := decodeTurns(conv[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		var label string
		if rawLabel, ok := conv[key+"_date_time"]; ok {
			if err := json.Unmarshal(rawLabel, &label); err != nil {
				return nil, fmt.Errorf("%s_date_time: %w", key, err)
			}
		}

		sessions = append(sessions, Session{
			Key:       key,
			Number:    num,
			Index:     idx,
			DateLabel: label,
			Turns:     turns,
		})
	}
	return sessions, nil
}

func decodeTurns(data json.RawMessage) ([]Turn, error) {
	var raw []rawTurn
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode turns: %w", err)
	}

	turns := make([]Turn, len(raw))
	for i, rt := range raw {
		if rt.Speaker == nil || rt.Text == nil {
			return nil, fmt.Errorf("%w at index %d", ErrMalformedTurn, i)
		}
		turns[i] = Turn{Speaker: *rt.Speaker, Text: *rt.Text}
	}
	return turns, nil
}
