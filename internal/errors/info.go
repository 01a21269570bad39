package errors

// Info contains details of the specific error code
type Info struct {
	// Kind specifies the kind of error (unknown, parameter, integrity, etc).
	Kind Kind

	// Message provides a default message for the error code
	Message string
}

// errorCodeInfo provides a map of unique Codes (IDs) to their
// corresponding Kind and a default Message.
var errorCodeInfo = map[Code]Info{
	Unknown: {
		Message: "unknown",
		Kind:    Other,
	},
	InvalidParameter: {
		Message: "invalid parameter",
		Kind:    Parameter,
	},
	InvalidConfiguration: {
		Message: "invalid configuration",
		Kind:    Configuration,
	},
	Internal: {
		Message: "internal error",
		Kind:    Other,
	},
	NotUnique: {
		Message: "must be unique violation",
		Kind:    Integrity,
	},
	Corrupt: {
		Message: "corrupt on-disk structure",
		Kind:    Integrity,
	},
	RecordNotFound: {
		Message: "record not found",
		Kind:    Search,
	},
	MultipleRecords: {
		Message: "multiple records",
		Kind:    Search,
	},
	KeyNotFound: {
		Message: "key/version not found",
		Kind:    Search,
	},
	Encode: {
		Message: "error occurred during encode",
		Kind:    Encoding,
	},
	Decode: {
		Message: "error occurred during decode",
		Kind:    Encoding,
	},
	Encrypt: {
		Message: "error occurred during encrypt",
		Kind:    Encryption,
	},
	Decrypt: {
		Message: "error occurred during decrypt",
		Kind:    Encryption,
	},
	GenKey: {
		Message: "error occurred during key generation",
		Kind:    Encryption,
	},
	ProviderInUse: {
		Message: "key provider is in use by a principal key",
		Kind:    State,
	},
	KeyAlreadySet: {
		Message: "a principal key is already configured",
		Kind:    State,
	},
	Io: {
		Message: "error during io operation",
		Kind:    Integrity,
	},
	KeyringRequest: {
		Message: "request to the keyring provider failed",
		Kind:    External,
	},
	Unavailable: {
		Message: "external system unavailable",
		Kind:    External,
	},
	MaxKeyVersions: {
		Message: "too many key versions",
		Kind:    Resource,
	},
	ConfigExceedsDepth: {
		Message: "configuration nested too deeply",
		Kind:    Resource,
	},
}
