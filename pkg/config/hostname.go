package config

import (
	"fmt"
	"strings"
)

// RFC 1123 limits for hostnames.
const (
	maxHostnameLength = 255
	maxLabelLength    = 63
)

// ValidateHostname checks a hostname against RFC 1123: labels of 1-63
// alphanumerics or hyphens that neither start nor end with a hyphen, joined
// by single dots, 255 characters total. A single trailing dot (FQDN form) is
// tolerated.
func ValidateHostname(hostname string) error {
	if len(hostname) > maxHostnameLength {
		return fmt.Errorf("hostname exceeds %d characters", maxHostnameLength)
	}

	// FQDNs may carry a trailing dot.
	hostname = strings.TrimSuffix(hostname, ".")

	if hostname == "" {
		return fmt.Errorf("hostname is empty")
	}
	if strings.HasPrefix(hostname, ".") || strings.Contains(hostname, "..") {
		return fmt.Errorf("hostname contains an empty label")
	}

	// RFC 1123 is case-insensitive.
	hostname = strings.ToLower(hostname)

	for _, label := range strings.Split(hostname, ".") {
		if err := validateLabel(label); err != nil {
			return err
		}
	}
	return nil
}

func validateLabel(label string) error {
	if len(label) < 1 || len(label) > maxLabelLength {
		return fmt.Errorf("label %q must be between 1 and %d characters", label, maxLabelLength)
	}
	for _, ch := range label {
		if !isAlphanumeric(ch) && ch != '-' {
			return fmt.Errorf("label %q contains invalid character %q", label, ch)
		}
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q must not start or end with a hyphen", label)
	}
	return nil
}

func isAlphanumeric(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}
