package libformat

import (
	"fmt"
	"strings"
)

// aliases maps the compact library-type strings historically used on the
// command line (I=inward/toward, O=outward/away, M=matching/same,
// U=unstranded, SF/SR=stranded forward/reverse) onto this package's
// Format. "U" alone denotes single-end, unstranded.
var aliases = map[string]Format{
	"U":   {SE, None, U},
	"SF":  {SE, None, S},
	"SR":  {SE, None, A},
	"IU":  {PE, Toward, U},
	"ISF": {PE, Toward, S},
	"ISR": {PE, Toward, A},
	"OU":  {PE, Away, U},
	"OSF": {PE, Away, S},
	"OSR": {PE, Away, A},
	"MU":  {PE, Same, U},
	"MSF": {PE, Same, S},
	"MSR": {PE, Same, A},
}

// ParseFormat parses either the compact alias strings above (e.g. "ISF")
// or the "ReadType:Orientation:Strandedness" form produced by
// Format.String (e.g. "PE:TOWARD:S").
func ParseFormat(s string) (Format, error) {
	if f, ok := aliases[strings.ToUpper(s)]; ok {
		return f, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Format{}, fmt.Errorf("libformat: unrecognized library format %q", s)
	}
	var f Format
	switch strings.ToUpper(parts[0]) {
	case "SE":
		f.ReadType = SE
	case "PE":
		f.ReadType = PE
	default:
		return Format{}, fmt.Errorf("libformat: unrecognized read type %q", parts[0])
	}
	switch strings.ToUpper(parts[1]) {
	case "NONE":
		f.Orientation = None
	case "SAME":
		f.Orientation = Same
	case "AWAY":
		f.Orientation = Away
	case "TOWARD":
		f.Orientation = Toward
	default:
		return Format{}, fmt.Errorf("libformat: unrecognized orientation %q", parts[1])
	}
	switch strings.ToUpper(parts[2]) {
	case "U":
		f.Strandedness = U
	case "S":
		f.Strandedness = S
	case "A":
		f.Strandedness = A
	case "SA":
		f.Strandedness = SA
	case "AS":
		f.Strandedness = AS
	default:
		return Format{}, fmt.Errorf("libformat: unrecognized strandedness %q", parts[2])
	}
	return f, nil
}

// InferFromEnds derives the observed Format of a paired alignment from
// the strand of each end and their relative order along the transcript,
// mirroring how the reference implementation classifies a resolved pair
// before scoring it against the library's declared format.
func InferFromEnds(end1Forward, end2Forward bool, end1Pos, end2Pos int) Format {
	strand := func(forward bool) Strandedness {
		if forward {
			return S
		}
		return A
	}
	f := Format{ReadType: PE, Strandedness: strand(end1Forward)}
	switch {
	case end1Forward == end2Forward:
		f.Orientation = Same
	case end1Forward && !end2Forward:
		if end1Pos <= end2Pos {
			f.Orientation = Toward
		} else {
			f.Orientation = Away
		}
	default: // !end1Forward && end2Forward
		if end2Pos <= end1Pos {
			f.Orientation = Toward
		} else {
			f.Orientation = Away
		}
	}
	return f
}
