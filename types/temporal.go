package types

// TemporalState describes how recently a peer has been heard from.
type TemporalState int32

const (
	StatePresent TemporalState = 0x01
	StateRare    TemporalState = 0x02
	StateMissed  TemporalState = 0x04
	StateLost    TemporalState = 0x08
	StateAbsent  TemporalState = 0x10
)

var temporalStates = []TemporalState{StatePresent, StateRare, StateMissed, StateLost, StateAbsent}

func (s TemporalState) Code() int32 {
	return int32(s)
}

func (s TemporalState) String() string {
	switch s {
	case StatePresent:
		return "PRESENT"
	case StateRare:
		return "RARE"
	case StateMissed:
		return "MISSED"
	case StateLost:
		return "LOST"
	case StateAbsent:
		return "ABSENT"
	}
	return "UNKNOWN"
}

// DecodeState returns the lowest state set in code, or StateAbsent when
// none is set.
func DecodeState(code int32) TemporalState {
	for _, s := range temporalStates {
		if code&int32(s) != 0 {
			return s
		}
	}
	return StateAbsent
}

// DecodeStates returns every state set in code, lowest first.
func DecodeStates(code int32) []TemporalState {
	var out []TemporalState
	for _, s := range temporalStates {
		if code&int32(s) != 0 {
			out = append(out, s)
		}
	}
	return out
}

// EncodeState combines states into a code.
func EncodeState(states ...TemporalState) int32 {
	var code int32
	for _, s := range states {
		code |= int32(s)
	}
	return code
}
