// Package command implements the signed settings-command pipeline: parsing
// the free-text command message miners sign with their payout key, validating
// the requested changes, and authorizing them against the coin node's
// message-signature verification.
package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/lucidpool/dashd/pkg/errors"
)

// stampLayout matches the timestamp the site embeds in generated messages,
// e.g. "2024-01-01 00:00:00.000 UTC".
const stampLayout = "2006-01-02 15:04:05.000 MST"

// Parse failures come in two flavors. An unrecognized command token means the
// user typed something we never generate; a field-access or date failure is
// more likely a pasting problem, and the error text points at the known IE11
// textarea bug that mangles tab characters.
const (
	msgUnknownCommand = "Invalid command given! Generate a new message & try again."
	msgMalformed      = "Invalid information provided in the message field. " +
		"This could be the fault of the bug with IE11, or the generated message has an error"
	msgNoStamp = "Time stamp not found in message! Generate a new message & try again."
)

// Command is the parsed but not yet validated content of a signed message.
// SetAddrs maps currency name to the requested payout address, last write per
// currency winning. Donation is kept as the raw percent text until
// validation so conversion failures report as validation errors, the way the
// rest of the field checks do.
type Command struct {
	SetAddrs  map[string]string
	DelAddrs  []string
	Anonymous bool
	Donation  string

	Stamp    time.Time
	HasStamp bool
	Site     string
}

// Parse splits a signed message into its command lines. Lines are separated
// by tabs and fields by single spaces; the token positions are fixed because
// the site generates these messages, so anything out of place is a hard
// parse failure rather than something to recover from.
func Parse(message string) (*Command, error) {
	cmd := &Command{
		SetAddrs: make(map[string]string),
		Donation: "0",
	}

	for _, line := range strings.Split(message, "\t") {
		parts := strings.Split(line, " ")

		switch parts[0] {
		case "SETADDR":
			if len(parts) < 3 {
				return nil, malformed(line)
			}
			cmd.SetAddrs[parts[1]] = parts[2]

		case "DELADDR":
			if len(parts) < 2 {
				return nil, malformed(line)
			}
			cmd.DelAddrs = append(cmd.DelAddrs, parts[1])

		case "MAKEANON":
			if len(parts) < 2 {
				return nil, malformed(line)
			}
			anon, err := strconv.ParseBool(strings.ToLower(parts[1]))
			if err != nil {
				return nil, malformed(line)
			}
			cmd.Anonymous = anon

		case "SETDONATE":
			if len(parts) < 2 {
				return nil, malformed(line)
			}
			cmd.Donation = parts[1]

		case "Only":
			// "Only valid for <site>"
			if len(parts) < 4 {
				return nil, malformed(line)
			}
			cmd.Site = parts[3]

		case "Generated":
			// "Generated at <date> <time> <tz>"
			if len(parts) < 5 {
				return nil, malformed(line)
			}
			stamp, err := time.Parse(stampLayout, parts[2]+" "+parts[3]+" "+parts[4])
			if err != nil {
				return nil, malformed(line)
			}
			cmd.Stamp = stamp
			cmd.HasStamp = true

		default:
			return nil, errors.New(errors.ErrorTypeParse, "parse_command", msgUnknownCommand).
				WithContext("token", parts[0])
		}
	}

	return cmd, nil
}

func malformed(line string) *errors.ServiceError {
	return errors.New(errors.ErrorTypeParse, "parse_command", msgMalformed).
		WithContext("line", line)
}
