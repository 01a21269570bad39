package errors

// Kind specifies the kind of error (unknown, parameter, integrity, etc.).
type Kind uint32

const (
	Other Kind = iota
	Parameter
	Configuration
	Integrity
	Search
	State
	Encoding
	Encryption
	External
	Resource
)

func (e Kind) String() string {
	switch e {
	case Parameter:
		return "parameter violation"
	case Configuration:
		return "configuration violation"
	case Integrity:
		return "integrity violation"
	case Search:
		return "search issue"
	case State:
		return "state issue"
	case Encoding:
		return "encoding issue"
	case Encryption:
		return "encryption issue"
	case External:
		return "external system issue"
	case Resource:
		return "resource limit exceeded"
	default:
		return "unknown"
	}
}
