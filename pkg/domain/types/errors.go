package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures that surface as errors: unparsable
// payloads and structurally broken routing rules.
var (
	ErrTagParse   = goerr.NewTag("malformed_payload")
	ErrTagBadRule = goerr.NewTag("bad_rule")
)
