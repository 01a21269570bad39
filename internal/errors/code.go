package errors

// Code specifies a code for the error.
type Code uint32

// String will return the Code's Info.Message
func (c Code) String() string {
	return c.Info().Message
}

// Info will look up the Code's Info.  If the Info is not found, it will return
// Info for an Unknown Code.
func (c Code) Info() Info {
	if info, ok := errorCodeInfo[c]; ok {
		return info
	}
	return errorCodeInfo[Unknown]
}

const (
	Unknown Code = 0 // Unknown will be equal to a zero value for Codes

	// General function errors are reserved Codes 100-999
	InvalidParameter     Code = 100 // InvalidParameter represents an invalid parameter for an operation
	InvalidConfiguration Code = 101 // InvalidConfiguration represents an invalid provider configuration
	Internal             Code = 500 // Internal represents an internal error that should never happen

	// Integrity violations are reserved Codes 1000-1099
	NotUnique Code = 1002 // NotUnique represents a value must be unique violation
	Corrupt   Code = 1050 // Corrupt represents an on-disk structure that failed validation

	// Search issues are reserved Codes 1100-1199
	RecordNotFound  Code = 1100 // RecordNotFound represents that a record was not found matching the criteria
	MultipleRecords Code = 1101 // MultipleRecords represents that multiple records matched when one was required
	KeyNotFound     Code = 1102 // KeyNotFound represents that a key (or key version) was not found in its keyring

	// Encoding issues are reserved Codes 1300-1399
	Encode Code = 1300 // Encode represents an error occurred during encode
	Decode Code = 1301 // Decode represents an error occurred during decode

	// Encryption issues are reserved Codes 1400-1499
	Encrypt Code = 1400 // Encrypt represents an error occurred during encrypt
	Decrypt Code = 1401 // Decrypt represents an error occurred during decrypt
	GenKey  Code = 1402 // GenKey represents an error occurred during key generation

	// State issues are reserved Codes 2000-2999
	ProviderInUse Code = 2000 // ProviderInUse represents a key provider still referenced by a principal key
	KeyAlreadySet Code = 2001 // KeyAlreadySet represents a principal key that is already configured for the scope

	// Io errors are reserved Codes 3000-3099
	Io Code = 3000 // Io represents an error during an io operation

	// External system errors are reserved Codes 3100-3199
	KeyringRequest Code = 3100 // KeyringRequest represents a failure reported by an external secret store
	Unavailable    Code = 3101 // Unavailable represents an external system that could not be reached

	// Resource limits are reserved Codes 3200-3299
	MaxKeyVersions     Code = 3200 // MaxKeyVersions represents a key whose version chain hit the hard cap
	ConfigExceedsDepth Code = 3201 // ConfigExceedsDepth represents a configuration document nested past the hard cap
)
