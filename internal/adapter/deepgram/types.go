package deepgram

import "encoding/json"

// Message is one JSON frame from the Flux listen socket.
type Message struct {
	Type       string  `json:"type"`
	Event      string  `json:"event,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"turn_confidence,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

const (
	// TypeTurnInfo frames carry turn lifecycle events.
	TypeTurnInfo = "TurnInfo"
	// EventEndOfTurn marks a finished utterance whose transcript is final.
	EventEndOfTurn = "EndOfTurn"
)

// EndOfTurn reports whether m is a final-utterance signal with a transcript.
func (m Message) EndOfTurn() bool {
	return m.Type == TypeTurnInfo && m.Event == EventEndOfTurn
}
