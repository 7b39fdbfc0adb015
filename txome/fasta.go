package txome

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// LoadFasta parses r as FASTA and returns parallel name/sequence slices
// in file order, ready for New. A sequence's name is the text
// immediately after '>' up to the first space; everything after that is
// ignored.
func LoadFasta(r io.Reader) ([]string, [][]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)

	var names []string
	var seqs [][]byte
	var name string
	var seq strings.Builder

	flush := func() error {
		if seq.Len() == 0 {
			return nil
		}
		if name == "" {
			return errors.New("txome: sequence data before any '>' header")
		}
		names = append(names, name)
		seqs = append(seqs, []byte(seq.String()))
		seq.Reset()
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, nil, err
			}
			name = strings.SplitN(line[1:], " ", 2)[0]
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "txome: reading FASTA")
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return names, seqs, nil
}
