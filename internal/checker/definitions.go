package checker

import (
	"bufio"
	"bytes"
	"regexp"
)

// list-definitions emits lines of the form:
//
//	"::Billing::Invoice" is defined at "packs/billing/app/models/invoice.rb"
var definitionLineRe = regexp.MustCompile(`^"(::[\w:]+)" is defined at "([^"]+)"$`)

// ParseDefinitions decodes list-definitions output. Lines that do not match
// the expected form are skipped: the tool interleaves warnings with data on
// some setups.
func ParseDefinitions(stdout []byte) []Definition {
	var defs []Definition

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		m := definitionLineRe.FindSubmatch(line)
		if m == nil {
			continue
		}
		defs = append(defs, Definition{
			Constant: string(m[1]),
			Path:     string(m[2]),
		})
	}

	return defs
}
