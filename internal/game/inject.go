package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// SideEffectType tags a SideEffect variant.
type SideEffectType string

// The closed set of side-effect variants. Injects mutate only the service
// catalog; anything else stays an admin operation.
const (
	SideEffectDeleteService SideEffectType = "delete_service"
	SideEffectAddService    SideEffectType = "add_service"
	SideEffectEditService   SideEffectType = "edit_service"
)

// SideEffect is a service-catalog mutation fired when an inject completes.
// Name is the target for delete and edit; Service carries the new
// definition for add and edit.
type SideEffect struct {
	Type    SideEffectType `json:"type"              yaml:"type"`
	Name    string         `json:"name,omitempty"    yaml:"name,omitempty"`
	Service *Service       `json:"service,omitempty" yaml:"service,omitempty"`
}

// Validate checks the variant shape without touching a config.
func (e SideEffect) Validate() error {
	switch e.Type {
	case SideEffectDeleteService:
		if e.Name == "" {
			return fmt.Errorf("%w: delete_service needs a name", ErrBadValue)
		}
	case SideEffectAddService:
		if e.Service == nil || !e.Service.IsValid() {
			return fmt.Errorf("%w: add_service needs a valid service", ErrBadValue)
		}
	case SideEffectEditService:
		if e.Name == "" || e.Service == nil || !e.Service.IsValid() {
			return fmt.Errorf("%w: edit_service needs a name and a valid service", ErrBadValue)
		}
	default:
		return fmt.Errorf("%w: unknown side effect type %q", ErrBadValue, e.Type)
	}
	return nil
}

// Apply runs the side effect against the config.
func (e SideEffect) Apply(c *Config) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case SideEffectDeleteService:
		return c.RemoveService(e.Name)
	case SideEffectAddService:
		return c.AddService(*e.Service)
	case SideEffectEditService:
		return c.EditService(e.Name, *e.Service)
	}
	return nil
}

// Inject is a time-boxed narrative task. Start and Duration are minutes of
// game time; a sticky inject has no duration and never auto-completes.
//
// FileType is tri-state: nil accepts any extension, an empty list refuses
// submissions entirely, a non-empty list is a whitelist.
type Inject struct {
	UUID        uuid.UUID    `json:"uuid"`
	Name        string       `json:"name"`
	Markdown    string       `json:"markdown"`
	Start       uint32       `json:"start"`
	Duration    uint32       `json:"duration"`
	Sticky      bool         `json:"sticky"`
	SideEffects []SideEffect `json:"side_effects,omitempty"`
	Completed   bool         `json:"completed"`
	FileType    []string     `json:"file_type"`
}

// IsActive reports whether the inject window is open at the given game
// minute. Sticky injects stay active once started.
func (in *Inject) IsActive(minutes uint32) bool {
	if minutes < in.Start {
		return false
	}
	return in.Sticky || minutes < in.Start+in.Duration
}

// IsEnded reports whether the inject window has closed. Sticky injects
// never end.
func (in *Inject) IsEnded(minutes uint32) bool {
	return !in.Sticky && minutes >= in.Start+in.Duration
}

// ResponseRequired reports whether the inject expects a file submission.
func (in *Inject) ResponseRequired() bool {
	return in.FileType == nil || len(in.FileType) > 0
}

// FileTypeOption returns the extension whitelist, None meaning any
// extension is accepted. An empty Some means no submission at all.
func (in *Inject) FileTypeOption() mo.Option[[]string] {
	if in.FileType == nil {
		return mo.None[[]string]()
	}
	return mo.Some(in.FileType)
}

// AllowsExtension checks an extension (without the dot) against the
// whitelist.
func (in *Inject) AllowsExtension(ext string) bool {
	whitelist, ok := in.FileTypeOption().Get()
	if !ok {
		return true
	}
	for _, allowed := range whitelist {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

// FormatName is the inject name as used in response filenames.
func (in *Inject) FormatName() string {
	return strings.ReplaceAll(in.Name, " ", "_")
}

// ResponseFilename builds the deterministic on-disk name for a submission
// with the given extension. Late submissions are marked in the name.
func (in *Inject) ResponseFilename(late bool, ext string) string {
	suffix := "_response"
	if late {
		suffix = "_late_response"
	}
	if ext == "" {
		return in.FormatName() + suffix
	}
	return in.FormatName() + suffix + "." + ext
}

func (in *Inject) clone() Inject {
	out := *in
	out.SideEffects = append([]SideEffect(nil), in.SideEffects...)
	if in.FileType != nil {
		out.FileType = append([]string{}, in.FileType...)
	}
	return out
}

// InjectResponse records one team submission for an inject.
type InjectResponse struct {
	UUID       uuid.UUID `json:"uuid"`
	InjectUUID uuid.UUID `json:"inject_uuid"`
	Name       string    `json:"name"`
	Late       bool      `json:"late"`
	Filename   string    `json:"filename"`
	UploadTime int64     `json:"upload_time"`
}

// CreateInject is the admin payload for a new inject. A nil Duration makes
// the inject sticky; NoSubmit forces an empty file-type list.
type CreateInject struct {
	Name        string       `json:"name"`
	Markdown    string       `json:"markdown"`
	Start       uint32       `json:"start"`
	Duration    *uint32      `json:"duration"`
	SideEffects []SideEffect `json:"side_effects"`
	FileType    []string     `json:"file_type"`
	NoSubmit    bool         `json:"no_submit"`
}

// ToInject materializes the payload with a fresh uuid.
func (c CreateInject) ToInject() Inject {
	in := Inject{
		UUID:        uuid.New(),
		Name:        c.Name,
		Markdown:    c.Markdown,
		Start:       c.Start,
		Sticky:      c.Duration == nil,
		SideEffects: c.SideEffects,
		FileType:    c.FileType,
	}
	if c.Duration != nil {
		in.Duration = *c.Duration
	}
	if c.NoSubmit {
		in.FileType = []string{}
	}
	return in
}
