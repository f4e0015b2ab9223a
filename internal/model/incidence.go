package model

import "time"

// Kind discriminates the three incidence variants a calendar can hold.
type Kind int

const (
	KindEvent Kind = iota
	KindTodo
	KindJournal
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindTodo:
		return "todo"
	case KindJournal:
		return "journal"
	default:
		return "unknown"
	}
}

// Classification mirrors the iCalendar CLASS property.
type Classification int

const (
	ClassPublic Classification = iota
	ClassPrivate
	ClassConfidential
)

// Status covers the union of VEVENT/VTODO/VJOURNAL STATUS values; not
// every value is meaningful for every Kind.
type Status int

const (
	StatusNone Status = iota
	StatusTentative
	StatusConfirmed
	StatusCancelled
	StatusNeedsAction
	StatusInProcess
	StatusCompleted
	StatusDraft
	StatusFinal
)

// Attendee is a participant on an Incidence, including the organizer
// when represented as an attendee with IsOrganizer set.
type Attendee struct {
	Email    string
	Name     string
	Role     string
	PartStat string
	RSVP     bool
	IsOrganizer bool
}

// Alarm describes a single reminder attached to an Incidence.
type Alarm struct {
	UID           string
	Trigger       time.Duration // relative to related time when Relative is true
	TriggerAbs    time.Time     // absolute trigger when Relative is false
	Relative      bool
	RelatedToEnd  bool
	Repeat        int
	RepeatDelay   time.Duration
	Enabled       bool
	Description   string
}

// NextTime returns the next absolute firing time at or after now,
// given the instance's relevant anchor time (dtstart or due). When no
// firing remains at or after now, it returns the last firing, which
// then lies before now.
func (a Alarm) NextTime(anchor, now time.Time) time.Time {
	var first time.Time
	if a.Relative {
		base := anchor
		first = base.Add(a.Trigger)
	} else {
		first = a.TriggerAbs
	}
	if a.Repeat <= 0 || a.RepeatDelay <= 0 {
		return first
	}
	t := first
	for i := 0; i <= a.Repeat; i++ {
		if !t.Before(now) {
			return t
		}
		t = t.Add(a.RepeatDelay)
	}
	return t.Add(-a.RepeatDelay)
}

// Attachment is an opaque binary or URI-referenced attachment.
type Attachment struct {
	URI      string
	MimeType string
	Data     []byte
	Label    string
}

// CustomProperty is a vendor-extension (X-...) property preserved
// verbatim across load/save cycles.
type CustomProperty struct {
	Name       string
	Value      string
	Parameters map[string]string
}

// Header holds the fields common to every incidence kind.
type Header struct {
	UID            string
	NotebookUID    string
	RecurrenceID   *time.Time // nil for the series master / non-recurring
	ThisAndFuture  bool       // RANGE=THISANDFUTURE on the exception
	Summary        string
	Description    string
	Location       string
	Categories     []string
	Classification Classification
	Created        time.Time
	LastModified   time.Time
	Revision       int
	HasGeo         bool
	Latitude       float64
	Longitude      float64
	Organizer      *Attendee
	Attendees      []Attendee
	Alarms         []Alarm
	Attachments    []Attachment
	CustomProps    []CustomProperty
	RRule          *RecurrenceRule
	ExRules        []RecurrenceRule
	RDates         []time.Time
	ExDates        []time.Time
	Deleted        bool
	DeletedDate    time.Time
}

// EventFields holds the VEVENT-specific properties.
type EventFields struct {
	DtStart      time.Time
	DtEnd        time.Time
	AllDay       bool
	Transparency string // OPAQUE or TRANSPARENT
	Status       Status
}

// TodoFields holds the VTODO-specific properties.
type TodoFields struct {
	DtStart        time.Time
	Due            time.Time
	Completed      time.Time
	PercentComplete int
	Priority       int
	Status         Status
}

// JournalFields holds the VJOURNAL-specific properties.
type JournalFields struct {
	DtStart time.Time
	Status  Status
}

// Incidence is the tagged-variant calendar component: Header carries the
// fields common to all kinds, and exactly one of Event/Todo/Journal is
// populated according to Kind.
type Incidence struct {
	Header
	Kind    Kind
	Event   *EventFields
	Todo    *TodoFields
	Journal *JournalFields
}

// InstanceKey identifies one occurrence of an incidence: the series UID
// plus, for an exception or a specific recurring occurrence, the
// recurrence-id of that occurrence.
type InstanceKey struct {
	UID          string
	RecurrenceID time.Time // zero value means "the master"
}

// Key returns the InstanceKey for this incidence.
func (i *Incidence) Key() InstanceKey {
	k := InstanceKey{UID: i.UID}
	if i.RecurrenceID != nil {
		k.RecurrenceID = *i.RecurrenceID
	}
	return k
}

// IsException reports whether this incidence is an exception occurrence
// of a recurring series rather than the series master.
func (i *Incidence) IsException() bool {
	return i.RecurrenceID != nil
}

// Recurs reports whether this incidence defines a recurring series.
func (i *Incidence) Recurs() bool {
	return i.RRule != nil || len(i.RDates) > 0
}

// StartTime returns the incidence's own-kind start time, used for
// recurrence expansion and sorting.
func (i *Incidence) StartTime() time.Time {
	switch i.Kind {
	case KindEvent:
		if i.Event != nil {
			return i.Event.DtStart
		}
	case KindTodo:
		if i.Todo != nil {
			if !i.Todo.DtStart.IsZero() {
				return i.Todo.DtStart
			}
			return i.Todo.Due
		}
	case KindJournal:
		if i.Journal != nil {
			return i.Journal.DtStart
		}
	}
	return time.Time{}
}

// EndTime returns the incidence's own-kind end time (DtEnd for events,
// Due for todos); zero for journals.
func (i *Incidence) EndTime() time.Time {
	switch i.Kind {
	case KindEvent:
		if i.Event != nil {
			return i.Event.DtEnd
		}
	case KindTodo:
		if i.Todo != nil {
			return i.Todo.Due
		}
	}
	return time.Time{}
}

// Duration returns EndTime - StartTime, or zero if either is unset.
func (i *Incidence) Duration() time.Duration {
	s, e := i.StartTime(), i.EndTime()
	if s.IsZero() || e.IsZero() {
		return 0
	}
	return e.Sub(s)
}

// Clone returns a deep-enough copy of the incidence for safe handoff to
// observers and callers: slices and the kind-specific pointer are
// copied so mutation by one holder is never visible to another.
func (i *Incidence) Clone() *Incidence {
	if i == nil {
		return nil
	}
	c := *i
	c.Categories = append([]string(nil), i.Categories...)
	c.Attendees = append([]Attendee(nil), i.Attendees...)
	c.Alarms = append([]Alarm(nil), i.Alarms...)
	c.Attachments = append([]Attachment(nil), i.Attachments...)
	c.CustomProps = append([]CustomProperty(nil), i.CustomProps...)
	c.ExRules = append([]RecurrenceRule(nil), i.ExRules...)
	c.RDates = append([]time.Time(nil), i.RDates...)
	c.ExDates = append([]time.Time(nil), i.ExDates...)
	if i.RecurrenceID != nil {
		rid := *i.RecurrenceID
		c.RecurrenceID = &rid
	}
	if i.Organizer != nil {
		org := *i.Organizer
		c.Organizer = &org
	}
	if i.RRule != nil {
		rr := *i.RRule
		c.RRule = &rr
	}
	switch i.Kind {
	case KindEvent:
		if i.Event != nil {
			ev := *i.Event
			c.Event = &ev
		}
	case KindTodo:
		if i.Todo != nil {
			td := *i.Todo
			c.Todo = &td
		}
	case KindJournal:
		if i.Journal != nil {
			jr := *i.Journal
			c.Journal = &jr
		}
	}
	return &c
}
