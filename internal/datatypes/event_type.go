// Package datatypes defines shared types for events sent to alert channels.
package datatypes

// EventType identifies what an outbound notification is about.
type EventType uint16

// Event types; string form is given in eventTypeMap.
const (
	MatchDetected EventType = iota + 1
	CaseCreated
	CaseFound
)

// eventTypeMap is the single source of truth for valid event type strings.
var eventTypeMap = map[string]EventType{
	"match.detected": MatchDetected,
	"case.created":   CaseCreated,
	"case.found":     CaseFound,
}

var reverseEventTypeMap map[EventType]string

func init() {
	reverseEventTypeMap = make(map[EventType]string, len(eventTypeMap))
	for str, eventType := range eventTypeMap {
		reverseEventTypeMap[eventType] = str
	}
}

// String returns the wire name, or "" for an unknown value.
func (et EventType) String() string {
	return reverseEventTypeMap[et]
}

// MarshalText encodes the wire name.
func (et EventType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

// ParseEventType converts a wire name to an EventType.
func ParseEventType(s string) (EventType, bool) {
	et, ok := eventTypeMap[s]

	return et, ok
}
