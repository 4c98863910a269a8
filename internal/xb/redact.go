package xb

import (
	"regexp"
	"sort"
	"strings"
)

const redactedValue = "****"

// passwordFlags take their secret either as --flag=value or as the next arg.
var passwordFlags = []string{"--password", "--pass", "--secret-key", "--encrypt-key"}

// passwordText matches password-like assignments in free text such as engine
// output or wrapped error strings.
var passwordText = regexp.MustCompile(`(?i)((?:password|passwd|pwd|secret[_-]?key|encrypt[_-]?key)\s*[=:]\s*)("[^"]*"|'[^']*'|\S+)`)

// RedactArgs masks password-bearing arguments of an engine invocation. The
// input slice is not modified.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	maskNext := false
	for i, arg := range args {
		if maskNext {
			out[i] = redactedValue
			maskNext = false
			continue
		}
		out[i] = arg
		for _, flag := range passwordFlags {
			if arg == flag {
				maskNext = true
				break
			}
			if strings.HasPrefix(arg, flag+"=") {
				out[i] = flag + "=" + redactedValue
				break
			}
		}
		// mysql-style -pSECRET
		if strings.HasPrefix(arg, "-p") && len(arg) > 2 && !strings.HasPrefix(arg, "--") {
			out[i] = "-p" + redactedValue
		}
	}
	return out
}

// Redactor masks known secrets and password-like text before it reaches a
// log sink or an error message.
type Redactor struct {
	secrets []string
}

// NewRedactor returns a Redactor for the given literal secrets. Empty values
// are ignored. Longer secrets are replaced first.
func NewRedactor(secrets ...string) *Redactor {
	var kept []string
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return len(kept[i]) > len(kept[j]) })
	return &Redactor{secrets: kept}
}

// String returns s with every known secret and password assignment masked.
func (r *Redactor) String(s string) string {
	if r != nil {
		for _, secret := range r.secrets {
			s = strings.ReplaceAll(s, secret, redactedValue)
		}
	}
	return passwordText.ReplaceAllString(s, "${1}"+redactedValue)
}
