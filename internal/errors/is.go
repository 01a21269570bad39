package errors

// IsUniqueError returns a boolean indicating whether the error is known to
// report a uniqueness violation (duplicate provider name, etc).
func IsUniqueError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		if domainErr.Code == NotUnique {
			return true
		}
	}
	return false
}

// IsNotFoundError returns a boolean indicating whether the error is known to
// report that a record, key or key version was not found.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		switch domainErr.Code {
		case RecordNotFound, KeyNotFound:
			return true
		}
	}
	return false
}

// IsCorruptError returns a boolean indicating whether the error is known to
// report a corrupt on-disk structure.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		if domainErr.Code == Corrupt {
			return true
		}
	}
	return false
}

// IsConfigurationError returns a boolean indicating whether the error is
// known to report an invalid provider configuration.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		if domainErr.Info().Kind == Configuration {
			return true
		}
	}
	return false
}

// IsExternalError returns a boolean indicating whether the error is known to
// report a failure of an external secret store that was NOT a not-found.
func IsExternalError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		if domainErr.Info().Kind == External {
			return true
		}
	}
	return false
}
