// Package actuator sends bounding boxes to the rover/gimbal controller using a line-oriented text protocol.
//
// Every command is a single line of four space-separated integers "<x> <y> <w> <h>\n".
// "0 0 0 0\n" tells the controller that there is no target and it should stop.
// Controller answers every command with exactly one line of status text.
package actuator

import (
	"strconv"
	"strings"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
)

// StopCommand is the "no target" sentinel line
const StopCommand = "0 0 0 0\n"

// FormatCommand serializes box into a protocol line. Nil box gives StopCommand.
func FormatCommand(box *sot.Box) string {
	if box == nil {
		return StopCommand
	}
	return strconv.Itoa(box.X) + " " + strconv.Itoa(box.Y) + " " + strconv.Itoa(box.W) + " " + strconv.Itoa(box.H) + "\n"
}

// ParseCommand parses protocol line back into box. Stop sentinel gives nil box.
func ParseCommand(line string) (*sot.Box, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return nil, errors.Errorf("expected 4 fields, got %d in %q", len(fields), line)
	}
	values := [4]int{}
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(err, "field %d of %q", i, line)
		}
		values[i] = v
	}
	box := sot.Box{X: values[0], Y: values[1], W: values[2], H: values[3]}
	if box.IsZero() {
		return nil, nil
	}
	return &box, nil
}
