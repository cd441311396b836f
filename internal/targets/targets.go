package targets

import (
	"os"
	"sort"
	"strings"

	"nrega-scraper/internal/model"
	"nrega-scraper/lib/configutil"
)

// Mapping is one entry of the targets file.
type Mapping struct {
	SpreadsheetID string `json:"spreadsheetId" yaml:"spreadsheetId"`
	Tab           string `json:"tab" yaml:"tab"`
	ReadTab       string `json:"readTab" yaml:"readTab"`
	WriteTab      string `json:"writeTab" yaml:"writeTab"`
}

type File struct {
	Targets map[string]Mapping `json:"targets" yaml:"targets"`
	Log     *Mapping           `json:"log" yaml:"log"`
}

// Target is what a job knows about its own destination before any config is
// consulted.
type Target struct {
	Name string
	// Aliases are alternative keys accepted in the targets file, for example
	// the script names older mapping files were keyed by.
	Aliases        []string
	DefaultTab     string
	DefaultReadTab string
}

const DefaultLogTab = "Runs"

// Resolver maps job names to destinations. When the targets file does not
// exist at all it falls back to environment variables.
type Resolver struct {
	file   *File
	getenv func(string) string
}

// Load reads the targets file at path. A missing file is not an error, it
// switches the resolver into env fallback mode. A malformed file is a
// ConfigError.
func Load(path string) (*Resolver, error) {
	r := &Resolver{getenv: os.Getenv}
	file, err := configutil.ReadConfig[File](path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, model.ConfigError{
			Reason:  "failed to read targets file",
			Subject: path,
			Err:     err,
		}
	}
	r.file = &file
	return r, nil
}

// FromFile builds a resolver from an already decoded targets file.
func FromFile(file File) *Resolver {
	return &Resolver{file: &file, getenv: os.Getenv}
}

// FromEnv builds a resolver that only consults the environment.
func FromEnv(getenv func(string) string) *Resolver {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{getenv: getenv}
}

// HasFile reports whether a targets file was found.
func (r *Resolver) HasFile() bool {
	return r.file != nil
}

func (r *Resolver) lookup(t Target) (Mapping, bool) {
	keys := append([]string{t.Name}, t.Aliases...)
	for _, k := range keys {
		m, ok := r.file.Targets[k]
		if ok {
			return m, true
		}
	}
	return Mapping{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func envKey(job, suffix string) string {
	upper := strings.ToUpper(job)
	upper = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
	return upper + "_" + suffix
}

// Resolve returns the destination of a job.
func (r *Resolver) Resolve(t Target) (model.Destination, error) {
	if r.file != nil {
		m, ok := r.lookup(t)
		if !ok {
			return model.Destination{}, model.ConfigError{
				Reason:  "no mapping",
				Subject: t.Name,
			}
		}
		if strings.TrimSpace(m.SpreadsheetID) == "" {
			return model.Destination{}, model.ConfigError{
				Reason:  "missing spreadsheet id",
				Subject: t.Name,
			}
		}
		return model.Destination{
			SpreadsheetID: strings.TrimSpace(m.SpreadsheetID),
			Tab:           firstNonEmpty(m.WriteTab, m.Tab, t.DefaultTab),
			ReadTab:       firstNonEmpty(m.ReadTab, m.Tab, t.DefaultReadTab),
		}, nil
	}

	id := firstNonEmpty(r.getenv(envKey(t.Name, "SHEET_ID")), r.getenv("SHEET_ID"))
	if id == "" {
		return model.Destination{}, model.ConfigError{
			Reason:  "missing spreadsheet id",
			Subject: t.Name,
		}
	}
	return model.Destination{
		SpreadsheetID: id,
		Tab:           firstNonEmpty(r.getenv(envKey(t.Name, "TAB")), r.getenv("SHEET_TAB"), t.DefaultTab),
		ReadTab:       firstNonEmpty(r.getenv(envKey(t.Name, "READ_TAB")), t.DefaultReadTab, t.DefaultTab),
	}, nil
}

// Log resolves the destination of the run ledger.
func (r *Resolver) Log() (model.Destination, error) {
	if r.file != nil && r.file.Log != nil {
		m := *r.file.Log
		if strings.TrimSpace(m.SpreadsheetID) == "" {
			return model.Destination{}, model.ConfigError{
				Reason:  "missing spreadsheet id",
				Subject: "log",
			}
		}
		return model.Destination{
			SpreadsheetID: strings.TrimSpace(m.SpreadsheetID),
			Tab:           firstNonEmpty(m.WriteTab, m.Tab, DefaultLogTab),
		}, nil
	}

	id := firstNonEmpty(r.getenv("LOG_SHEET_ID"), r.getenv("SHEET_ID"))
	if id == "" {
		return model.Destination{}, model.ConfigError{
			Reason:  "missing spreadsheet id",
			Subject: "log",
		}
	}
	return model.Destination{
		SpreadsheetID: id,
		Tab:           firstNonEmpty(r.getenv("LOG_TAB"), r.getenv("SHEET_TAB"), DefaultLogTab),
	}, nil
}

// Targets lists the keys of every mapping in the targets file, sorted.
// It is empty in env fallback mode.
func (r *Resolver) Targets() []string {
	if r.file == nil {
		return nil
	}
	out := make([]string, 0, len(r.file.Targets))
	for k := range r.file.Targets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
