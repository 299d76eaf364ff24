package jsconfig

import "fmt"

// ConfigError reports inconsistent class metadata. It is never recovered:
// the profile cannot be bound until the metadata is fixed.
type ConfigError struct {
	Profile string
	Class   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	where := e.Class
	if e.Profile != "" {
		where = fmt.Sprintf("%s (profile %s)", e.Class, e.Profile)
	}
	if e.Err != nil {
		return fmt.Sprintf("class configuration error in %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("class configuration error in %s: %s", where, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func newConfigError(profileKey, class, reason string, err error) *ConfigError {
	return &ConfigError{Profile: profileKey, Class: class, Reason: reason, Err: err}
}
