package functions

import "fmt"

// Status is a successful outcome of a callable function
type Status int

const (
	StatusRegistered Status = iota + 1
	StatusAlreadyExists
	StatusNotExist
	StatusLoggedIn
	StatusLoggedOut
	StatusUpdated
	StatusSuccess
)

var statusText = map[Status]string{
	StatusRegistered:    "User has successfully registered",
	StatusAlreadyExists: "User account already exists",
	StatusNotExist:      "User does not exist",
	StatusLoggedIn:      "User has successfully logged in",
	StatusLoggedOut:     "User has successfully logged out",
	StatusUpdated:       "User has successfully updated",
	StatusSuccess:       "success",
}

func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText makes Status appear as its text in JSON payloads
func (s Status) MarshalText() ([]byte, error) {
	text, ok := statusText[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(text), nil
}

// UnmarshalText is the inverse of MarshalText
func (s *Status) UnmarshalText(b []byte) error {
	for status, text := range statusText {
		if text == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// StatusResult is returned by the account functions
type StatusResult struct {
	Status Status `json:"status"`
}
