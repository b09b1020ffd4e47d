package locomo

import (
	"fmt"

	"github.com/google/uuid"
)

// idPrefix keeps LoCoMo agent IDs apart from IDs derived from the same raw key elsewhere.
const idPrefix = "locomo."

// AgentID derives the memory agent ID for a sample: a version 5 UUID over the DNS namespace
// and "locomo.<sampleID>". The result matches uuid5(NAMESPACE_DNS, ...) in other runtimes, so
// IDs stay stable against data ingested by earlier tooling.
func AgentID(sampleID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(idPrefix+sampleID))
}

// ConversationID names one session of a sample on the memory side. number is the session
// number as written in the corpus key, so "session_01" and "session_1" stay distinct.
func ConversationID(sampleID, number string) string {
	return fmt.Sprintf("%s_session_%s", sampleID, number)
}
