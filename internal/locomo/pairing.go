package locomo

// PairTurns folds consecutive turns into exchanges, two at a time and without overlap.
// A trailing unpaired turn gets NoResponse as its assistant side. The input is not modified.
func PairTurns(turns []Turn) []Exchange {
	pairs := make([]Exchange, 0, (len(turns)+1)/2)

	i := 0
	for ; i+1 < len(turns); i += 2 {
		pairs = append(pairs, Exchange{
			User:      formatTurn(turns[i]),
			Assistant: formatTurn(turns[i+1]),
		})
	}
	if i < len(turns) {
		pairs = append(pairs, Exchange{
			User:      formatTurn(turns[i]),
			Assistant: NoResponse,
		})
	}

	return pairs
}

// NormalizeSession prefixes the paired turns with a header exchange carrying the session date,
// so the memory side has a readable temporal anchor even for labels it cannot parse.
func NormalizeSession(turns []Turn, dateLabel string) []Exchange {
	if dateLabel == "" {
		dateLabel = UnknownDate
	}

	out := make([]Exchange, 0, 1+(len(turns)+1)/2)
	out = append(out, Exchange{
		User:      "[Conversation date: " + dateLabel + "]",
		Assistant: Acknowledged,
	})
	return append(out, PairTurns(turns)...)
}

func formatTurn(t Turn) string {
	return t.Speaker + ": " + t.Text
}
