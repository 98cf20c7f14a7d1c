package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/config"
	"github.com/sells-group/gchange/internal/directory"
	"github.com/sells-group/gchange/internal/ngmatch"
)

// MissingListAction decides what happens when the selected NG list
// does not exist.
type MissingListAction string

const (
	// Abort fails the run with ngmatch.ErrExclusionListNotFound.
	Abort MissingListAction = "abort"
	// Unfiltered logs a warning and keeps every record.
	Unfiltered MissingListAction = "unfiltered"
)

// Options configures a Pipeline.
type Options struct {
	Policy              directory.Policy
	Match               ngmatch.Options
	DropDuplicatePhones bool
	DropEmpty           bool
	OnMissingList       MissingListAction
}

// DefaultOptions returns the behavior used with an empty configuration.
func DefaultOptions() Options {
	return Options{
		Policy:        directory.DefaultPolicy(),
		OnMissingList: Abort,
	}
}

// OptionsFromConfig builds Options from the parse and match sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	header, err := directory.ParseHeaderMode(cfg.Parse.HeaderMode)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: parse.header_mode")
	}
	phone, err := directory.ParseMatchPolicy(cfg.Parse.PhonePolicy)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: parse.phone_policy")
	}
	onMissing, err := ParseMissingListAction(cfg.Match.OnMissingList)
	if err != nil {
		return Options{}, err
	}

	return Options{
		Policy: directory.Policy{
			Header:         header,
			AttributeGuard: cfg.Parse.AttributeGuard,
			FilterKeywords: cfg.Parse.FilterKeywords,
			Phone:          phone,
			ExtraKeywords:  cfg.Parse.ExtraKeywords,
		},
		Match: ngmatch.Options{
			StrictNameClean: cfg.Match.StrictNameClean,
			PhoneSubstring:  cfg.Match.PhoneSubstring,
		},
		DropDuplicatePhones: cfg.Match.DropDuplicatePhones,
		DropEmpty:           cfg.Match.DropEmpty,
		OnMissingList:       onMissing,
	}, nil
}

// ParseMissingListAction parses match.on_missing_list. "" means abort.
func ParseMissingListAction(s string) (MissingListAction, error) {
	switch a := MissingListAction(s); a {
	case "":
		return Abort, nil
	case Abort, Unfiltered:
		return a, nil
	default:
		return "", eris.Errorf("pipeline: unknown on_missing_list %q", s)
	}
}
