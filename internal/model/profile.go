package model

import (
	"fmt"
	"net/mail"
	"net/url"
)

// Profile are the user defaults used when talking to the PDF service.
type Profile struct {
	// APIURL is the PDF service base URL.
	APIURL string
	// RequestsPerSecond limits the request rate to the service, 0 is unlimited.
	RequestsPerSecond float64
	// SendToKindle is the default delivery mode of new jobs.
	SendToKindle bool
	// KindleEmail is the default Kindle delivery address.
	KindleEmail string
	// DBPath is the local session store path.
	DBPath string
}

// Validate validates the profile model.
func (p Profile) Validate() error {
	if p.APIURL != "" {
		u, err := url.Parse(p.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api url %q must be an http(s) URL: %w", p.APIURL, ErrNotValid)
		}
	}

	if p.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second can't be negative: %w", ErrNotValid)
	}

	if p.KindleEmail != "" {
		if _, err := mail.ParseAddress(p.KindleEmail); err != nil {
			return fmt.Errorf("kindle email %q is not valid: %w", p.KindleEmail, ErrNotValid)
		}
	}

	if p.SendToKindle && p.KindleEmail == "" {
		return fmt.Errorf("kindle email is required when sending to kindle by default: %w", ErrNotValid)
	}

	return nil
}
